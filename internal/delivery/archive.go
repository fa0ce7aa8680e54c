package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

const (
	DefaultMaxAttempts  = 10
	DefaultPollInterval = 10 * time.Second
	abortTimeout        = 30 * time.Second
)

var ErrNoPendingCopy = errors.New("no pending copy operation")

type CopyStatus string

const (
	CopyStatusPending CopyStatus = "pending"
	CopyStatusSuccess CopyStatus = "success"
	CopyStatusFailed  CopyStatus = "failed"
	CopyStatusAborted CopyStatus = "aborted"
)

func (s CopyStatus) Terminal() bool {
	return s == CopyStatusSuccess || s == CopyStatusFailed || s == CopyStatusAborted
}

type CopyState struct {
	Status      CopyStatus
	ID          string
	Description string
}

type CopyClient interface {
	StartCopy(ctx context.Context, srcURL string) (CopyState, error)
	GetCopyState(ctx context.Context) (CopyState, error)
	AbortCopy(ctx context.Context, copyID string) error
}

// CopyError reports an archive copy that did not end in success.
type CopyError struct {
	State   CopyState
	Aborted bool
}

func (e *CopyError) Error() string {
	msg := fmt.Sprintf("archive copy %s ended with status %s", e.State.ID, e.State.Status)
	if e.Aborted {
		msg += " and was aborted"
	}
	if e.State.Description != "" {
		msg += ": " + e.State.Description
	}
	return msg
}

type Archiver struct {
	NewCopyClient func(name string) (CopyClient, error)
	MaxAttempts   int
	PollInterval  time.Duration
	// Sleep waits between status checks; it must return early with the context error on cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Archive copies srcURL into the archive as name and waits a bounded time for the copy to finish.
// A copy still pending once every check is spent gets aborted and its last observed status is returned.
func (a *Archiver) Archive(ctx context.Context, srcURL string, name string) (CopyStatus, error) {
	logger := sloger.FromContext(ctx)

	maxAttempts := a.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	interval := a.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	sleep := a.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	client, err := a.NewCopyClient(name)
	if err != nil {
		return CopyStatusFailed, err
	}

	logger.Info("starting archive copy", "src", srcURL, "archive_blob", name)
	last, err := client.StartCopy(ctx, srcURL)
	if err != nil {
		return CopyStatusFailed, fmt.Errorf("failed to start archive copy: %w", err)
	}
	copyID := last.ID

	var pollErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		state, err := client.GetCopyState(ctx)
		metrics.CopyPolls.Inc()
		if err != nil {
			if ctx.Err() != nil {
				return last.Status, errors.Join(ctx.Err(), a.abort(ctx, client, copyID, last))
			}
			logger.Warn("failed to read archive copy status", "attempt", attempt, "error", err)
			pollErr = fmt.Errorf("read archive copy status on attempt %d: %w", attempt, err)
		} else {
			pollErr = nil
			last = state
			if state.ID != "" {
				copyID = state.ID
			}
			logger.Info("Copy progress", "attempt", attempt, "status", state.Status)
		}

		switch last.Status {
		case CopyStatusSuccess:
			return CopyStatusSuccess, nil
		case CopyStatusFailed, CopyStatusAborted:
			return last.Status, &CopyError{State: last}
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return last.Status, errors.Join(err, a.abort(ctx, client, copyID, last))
		}
	}

	logger.Warn("archive copy did not finish in time, aborting", "copy_id", copyID, "attempts", maxAttempts, "status", last.Status)
	status, err := a.finish(ctx, client, copyID, last)
	if err != nil && pollErr != nil {
		err = errors.Join(err, pollErr)
	}
	return status, err
}

// finish aborts a copy that outlived the poll budget. A copy that completed in the meantime makes the abort a
// no-op, in which case the final state is read back instead.
func (a *Archiver) finish(ctx context.Context, client CopyClient, copyID string, last CopyState) (CopyStatus, error) {
	err := a.abort(ctx, client, copyID, last)
	if !errors.Is(err, ErrNoPendingCopy) {
		return last.Status, err
	}

	state, serr := client.GetCopyState(ctx)
	if serr != nil {
		return last.Status, errors.Join(err, serr)
	}
	if state.Status == CopyStatusSuccess {
		sloger.FromContext(ctx).Info("archive copy completed before abort", "copy_id", copyID)
		return CopyStatusSuccess, nil
	}
	return state.Status, &CopyError{State: state}
}

func (a *Archiver) abort(ctx context.Context, client CopyClient, copyID string, last CopyState) error {
	// the abort has to go out even when the caller gave up
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	metrics.CopyAborts.Inc()
	if err := client.AbortCopy(ctx, copyID); err != nil {
		if !errors.Is(err, ErrNoPendingCopy) {
			sloger.FromContext(ctx).Error("failed to abort archive copy", "copy_id", copyID, "error", err)
		}
		return fmt.Errorf("abort archive copy %s: %w", copyID, err)
	}
	return &CopyError{State: last, Aborted: true}
}
