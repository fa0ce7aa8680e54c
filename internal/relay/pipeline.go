package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/delivery"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/identity"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/locker"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/reports"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const reportSchemaVersion = "1.0.0"

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

type SecretStore interface {
	GetSecret(ctx context.Context, token string, name string) (string, error)
}

type Pipeline struct {
	Tokens          identity.TokenSource
	Vault           SecretStore
	SecretNames     SecretNames
	SourceContainer string
	NewSource       func(ctx context.Context, s *Session) (delivery.Source, error)
	NewDestination  func(ctx context.Context, s *Session) (delivery.Destination, error)
	Archiver        *delivery.Archiver
	Scratch         *delivery.Scratch
	Locker          locker.Locker
	// Report receives the invocation report; reports.Publish when nil.
	Report         func(ctx context.Context, r *reports.Report)
	ServiceName    string
	ServiceVersion string
}

// scratch falls back to the os temp dir when no scratch space was configured.
func (p *Pipeline) scratch() *delivery.Scratch {
	if p.Scratch == nil {
		return &delivery.Scratch{Dir: os.TempDir()}
	}
	return p.Scratch
}

func (p *Pipeline) tracer() trace.Tracer {
	return otel.Tracer("github.com/cdcgov/data-exchange-upload/blob-relay/internal/relay")
}

// Relay moves the blob named by e to the destination bucket, archives it and removes it from the source.
// The source is only deleted after both the upload and the archive copy succeeded.
func (p *Pipeline) Relay(ctx context.Context, e *event.BlobCreated) (res *Result, err error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if p.SourceContainer != "" && e.Container() != p.SourceContainer {
		return nil, fmt.Errorf("%w: %s", ErrForeignContainer, e.Container())
	}

	s := &Session{
		InvocationID: uuid.NewString(),
		Event:        e,
	}
	ctx = sloger.SetInvocationId(ctx, s.InvocationID, "blob", e.Path)
	log := sloger.FromContext(ctx)

	ctx, span := p.tracer().Start(ctx, "relay", trace.WithAttributes(
		attribute.String("relay.invocation_id", s.InvocationID),
		attribute.String("relay.blob", e.Path),
		attribute.Int64("relay.length", e.Length),
	))
	defer span.End()

	if p.Locker != nil {
		lock, err := p.Locker.NewLock(e.Path)
		if err != nil {
			return nil, err
		}
		if err := lock.Lock(ctx); err != nil {
			if errors.Is(err, locker.ErrLockHeld) {
				log.Warn("blob is already being relayed", "reason", err)
				metrics.InvocationTotals.WithLabelValues("in_progress").Inc()
				return nil, fmt.Errorf("%w: %s", ErrInProgress, e.Path)
			}
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Error("failed to release blob lock", "error", err)
			}
		}()
	}

	metrics.ActiveInvocations.Inc()
	defer metrics.ActiveInvocations.Dec()

	res = &Result{
		InvocationID: s.InvocationID,
		Blob:         e.Path,
	}
	start := time.Now()
	log.Info("relay started", "length", humanize.Bytes(uint64(max(e.Length, 0))))

	defer func() {
		if cerr := p.scratch().Cleanup(s.InvocationID); cerr != nil {
			log.Warn("failed to clean up scratch space", "error", cerr)
		}
		res.skipRest()
		outcome := "success"
		if err != nil {
			outcome = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.InvocationTotals.WithLabelValues(outcome).Inc()
		p.report(ctx, res, start, err)
		log.Info("relay finished", "result", outcome, "archive_status", res.ArchiveStatus, "deleted", res.Deleted, "duration", time.Since(start).String())
	}()

	return res, p.run(ctx, s, res)
}

func (p *Pipeline) run(ctx context.Context, s *Session, res *Result) error {
	e := s.Event

	if err := p.step(ctx, res, StepToken, func(ctx context.Context) (err error) {
		s.Token, err = p.Tokens.Token(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := p.step(ctx, res, StepStorageKey, func(ctx context.Context) (err error) {
		s.Secrets.StorageKey, err = p.Vault.GetSecret(ctx, s.Token, p.SecretNames.StorageKey)
		return err
	}); err != nil {
		return err
	}

	if err := p.step(ctx, res, StepAccessKey, func(ctx context.Context) (err error) {
		s.Secrets.AccessKey, err = p.Vault.GetSecret(ctx, s.Token, p.SecretNames.AccessKey)
		return err
	}); err != nil {
		return err
	}

	if err := p.step(ctx, res, StepDownload, func(ctx context.Context) (err error) {
		s.Source, err = p.NewSource(ctx, s)
		if err != nil {
			return fmt.Errorf("failed to open source storage session: %w", err)
		}
		s.Scratch, err = p.scratch().Download(ctx, s.Source, s.InvocationID, e.BlobName(), e.Length)
		if err != nil {
			return err
		}
		res.Size = s.Scratch.Size
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, res, StepUpload, func(ctx context.Context) (err error) {
		s.Destination, err = p.NewDestination(ctx, s)
		if err != nil {
			return err
		}
		start := time.Now()
		res.DestinationURL, err = s.Destination.Upload(ctx, s.Scratch.Path, e.FileName())
		if err != nil {
			return err
		}
		if dur := time.Since(start); dur > 0 {
			metrics.SpeedHistograms.WithLabelValues(string(StepUpload)).Observe(float64(s.Scratch.Size) / dur.Seconds())
		}
		return nil
	}); err != nil {
		return err
	}

	res.SourceURL = s.Source.URL(e.BlobName())
	if err := p.step(ctx, res, StepArchive, func(ctx context.Context) (err error) {
		res.ArchiveStatus, err = p.Archiver.Archive(ctx, res.SourceURL, e.FileName())
		if err == nil && res.ArchiveStatus != delivery.CopyStatusSuccess {
			err = fmt.Errorf("archive copy ended with status %s", res.ArchiveStatus)
		}
		return err
	}); err != nil {
		return err
	}

	// a failed delete leaves the blob for manual cleanup and does not fail the invocation
	if err := p.step(ctx, res, StepDelete, func(ctx context.Context) error {
		return s.Source.Delete(ctx, e.BlobName())
	}); err == nil {
		res.Deleted = true
	}
	return nil
}

func (p *Pipeline) step(ctx context.Context, res *Result, step Step, fn func(ctx context.Context) error) error {
	log := sloger.FromContext(ctx).With("step", step)
	ctx, span := p.tracer().Start(ctx, string(step))
	defer span.End()

	err := fn(sloger.WithLogger(ctx, log))
	res.record(step, err)
	if err != nil {
		metrics.StepTotals.WithLabelValues(string(step), StatusFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("relay step failed", "error", err)
		return &StepError{Step: step, Err: err}
	}
	metrics.StepTotals.WithLabelValues(string(step), StatusSuccess).Inc()
	log.Debug("relay step done")
	return nil
}

func (p *Pipeline) report(ctx context.Context, res *Result, start time.Time, err error) {
	rb := reports.NewBuilder(reportSchemaVersion, reports.StageBlobRelay, res.InvocationID, reports.DispositionTypeAdd).
		SetBlob(res.Blob).
		SetService(p.ServiceName, p.ServiceVersion).
		SetStartTime(start).
		SetEndTime(time.Now())

	content := reports.RelayContent{
		SourceUrl:      redactQuery(res.SourceURL),
		DestinationUrl: res.DestinationURL,
		ArchiveStatus:  string(res.ArchiveStatus),
		Size:           res.Size,
	}
	status := reports.StatusSuccess
	for _, o := range res.Steps {
		sc := reports.StepContent{Step: string(o.Step), Status: o.Status}
		if o.Err != nil {
			sc.Error = o.Err.Error()
			rb.AppendIssue(fmt.Sprintf("%s: %s", o.Step, o.Err))
		}
		content.Steps = append(content.Steps, sc)
	}
	if err != nil {
		status = reports.StatusFailed
	}
	rb.SetStatus(status).SetContent(content)

	publish := p.Report
	if publish == nil {
		publish = reports.Publish
	}
	publish(ctx, rb.Build())
}

// redactQuery drops query strings so signed source urls stay out of reports.
func redactQuery(u string) string {
	base, _, _ := strings.Cut(u, "?")
	return base
}
