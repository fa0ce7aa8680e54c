package relay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/delivery"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/identity"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/locker"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/vault"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srcDir     string
	archiveDir string
	destDir    string
	scratchDir string
	content    []byte

	mu       sync.Mutex
	reported []*reports.Report

	pipeline *Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	root := t.TempDir()
	env := &testEnv{
		srcDir:     filepath.Join(root, "dropzone"),
		archiveDir: filepath.Join(root, "archive"),
		destDir:    filepath.Join(root, "bucket"),
		scratchDir: filepath.Join(root, "tmp"),
		content:    bytes.Repeat([]byte{0x25, 0x50, 0x44, 0x46}, 1024),
	}
	for _, d := range []string{env.srcDir, env.archiveDir, env.destDir, env.scratchDir} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(env.srcDir, "invoice.pdf"), env.content, 0644))

	env.pipeline = &Pipeline{
		Tokens: identity.StaticTokenSource("token"),
		Vault: vault.StaticSecrets{
			"storageaccountkey": "storage-key",
			"ACCESSKEYRBI":      "access-key",
		},
		SecretNames:     SecretNames{StorageKey: "storageaccountkey", AccessKey: "ACCESSKEYRBI"},
		SourceContainer: "dropzone",
		NewSource: func(_ context.Context, s *Session) (delivery.Source, error) {
			if s.Secrets.StorageKey == "" {
				return nil, errors.New("no storage key in session")
			}
			return &delivery.FileSource{FromPath: env.srcDir}, nil
		},
		NewDestination: func(_ context.Context, s *Session) (delivery.Destination, error) {
			if s.Secrets.AccessKey == "" {
				return nil, delivery.ErrMissingCredentials
			}
			return &delivery.FileDestination{ToPath: env.destDir}, nil
		},
		Archiver: &delivery.Archiver{
			NewCopyClient: func(name string) (delivery.CopyClient, error) {
				return &delivery.FileCopyClient{ToPath: env.archiveDir, Name: name}, nil
			},
			Sleep: func(context.Context, time.Duration) error { return nil },
		},
		Scratch: &delivery.Scratch{Dir: env.scratchDir},
		Locker:  locker.NewMemoryLocker(),
		Report: func(_ context.Context, r *reports.Report) {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.reported = append(env.reported, r)
		},
	}
	return env
}

func (env *testEnv) exists(t *testing.T, path ...string) bool {
	_, err := os.Stat(filepath.Join(path...))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return err == nil
}

func (env *testEnv) assertScratchEmpty(t *testing.T) {
	entries, err := os.ReadDir(env.scratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch space should be cleaned up")
}

func assertSteps(t *testing.T, res *Result, want map[Step]string) {
	for step, status := range want {
		o, ok := res.Outcome(step)
		if assert.True(t, ok, "missing outcome for %s", step) {
			assert.Equal(t, status, o.Status, "step %s", step)
		}
	}
}

func TestRelayInvoice(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	require.NoError(t, err)

	uploaded, err := os.ReadFile(filepath.Join(env.destDir, "invoice.pdf"))
	require.NoError(t, err)
	assert.Equal(t, env.content, uploaded)
	archived, err := os.ReadFile(filepath.Join(env.archiveDir, "invoice.pdf"))
	require.NoError(t, err)
	assert.Equal(t, env.content, archived)
	assert.False(t, env.exists(t, env.srcDir, "invoice.pdf"), "source should be deleted")

	assert.EqualValues(t, 4096, res.Size)
	assert.Equal(t, delivery.CopyStatusSuccess, res.ArchiveStatus)
	assert.True(t, res.Deleted)
	assertSteps(t, res, map[Step]string{
		StepToken:      StatusSuccess,
		StepStorageKey: StatusSuccess,
		StepAccessKey:  StatusSuccess,
		StepDownload:   StatusSuccess,
		StepUpload:     StatusSuccess,
		StepArchive:    StatusSuccess,
		StepDelete:     StatusSuccess,
	})
	env.assertScratchEmpty(t)

	require.Len(t, env.reported, 1)
	r := env.reported[0]
	assert.Equal(t, reports.StatusSuccess, r.StageInfo.Status)
	assert.Equal(t, "dropzone/invoice.pdf", r.Blob)
	assert.Equal(t, res.InvocationID, r.InvocationID)
	assert.Equal(t, "success", r.Content.ArchiveStatus)
	assert.Len(t, r.Content.Steps, len(Steps))
}

func TestRelayWithoutScratchUsesTempDir(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.Scratch = nil

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", int64(len(env.content))))
	require.NoError(t, err)
	assert.Equal(t, int64(len(env.content)), res.Size)
	assert.True(t, env.exists(t, env.destDir, "invoice.pdf"))
	assert.False(t, env.exists(t, os.TempDir(), res.InvocationID), "temp scratch should be cleaned up")
}

func TestRelayVaultForbiddenSkipsUpload(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/secrets/ACCESSKEYRBI" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"value":"storage-key"}`))
	}))
	defer srv.Close()
	env.pipeline.Vault = vault.New(srv.URL)

	uploads := 0
	env.pipeline.NewDestination = func(context.Context, *Session) (delivery.Destination, error) {
		uploads++
		return &delivery.FileDestination{ToPath: env.destDir}, nil
	}

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepAccessKey, stepErr.Step)
	var secretErr *vault.SecretError
	require.ErrorAs(t, err, &secretErr)
	assert.True(t, secretErr.Forbidden())

	assert.Zero(t, uploads)
	assert.False(t, env.exists(t, env.destDir, "invoice.pdf"))
	assert.True(t, env.exists(t, env.srcDir, "invoice.pdf"))
	assertSteps(t, res, map[Step]string{
		StepStorageKey: StatusSuccess,
		StepAccessKey:  StatusFailed,
		StepDownload:   StatusSkipped,
		StepUpload:     StatusSkipped,
		StepArchive:    StatusSkipped,
		StepDelete:     StatusSkipped,
	})
	require.Len(t, env.reported, 1)
	assert.Equal(t, reports.StatusFailed, env.reported[0].StageInfo.Status)
}

// vanishingDestination loses the scratch file right before uploading it.
type vanishingDestination struct {
	delivery.FileDestination
}

func (d *vanishingDestination) Upload(ctx context.Context, localPath string, objectName string) (string, error) {
	os.Remove(localPath)
	return d.FileDestination.Upload(ctx, localPath, objectName)
}

func TestRelayUploadFailureSkipsArchiveAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.NewDestination = func(context.Context, *Session) (delivery.Destination, error) {
		return &vanishingDestination{delivery.FileDestination{ToPath: env.destDir}}, nil
	}
	copies := 0
	env.pipeline.Archiver.NewCopyClient = func(name string) (delivery.CopyClient, error) {
		copies++
		return &delivery.FileCopyClient{ToPath: env.archiveDir, Name: name}, nil
	}

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	assert.ErrorIs(t, err, delivery.ErrLocalFileNotExist)
	assert.Zero(t, copies)
	assert.False(t, env.exists(t, env.archiveDir, "invoice.pdf"))
	assert.True(t, env.exists(t, env.srcDir, "invoice.pdf"))
	assertSteps(t, res, map[Step]string{
		StepUpload:  StatusFailed,
		StepArchive: StatusSkipped,
		StepDelete:  StatusSkipped,
	})
	env.assertScratchEmpty(t)
}

type pendingCopyClient struct {
	checks int
	aborts []string
}

func (c *pendingCopyClient) StartCopy(context.Context, string) (delivery.CopyState, error) {
	return delivery.CopyState{ID: "copy-42", Status: delivery.CopyStatusPending}, nil
}

func (c *pendingCopyClient) GetCopyState(context.Context) (delivery.CopyState, error) {
	c.checks++
	return delivery.CopyState{ID: "copy-42", Status: delivery.CopyStatusPending}, nil
}

func (c *pendingCopyClient) AbortCopy(_ context.Context, id string) error {
	c.aborts = append(c.aborts, id)
	return nil
}

func TestRelayPendingCopyAbortsAndKeepsSource(t *testing.T) {
	env := newTestEnv(t)
	c := &pendingCopyClient{}
	sleeps := 0
	env.pipeline.Archiver = &delivery.Archiver{
		NewCopyClient: func(string) (delivery.CopyClient, error) { return c, nil },
		MaxAttempts:   10,
		PollInterval:  10 * time.Second,
		Sleep: func(context.Context, time.Duration) error {
			sleeps++
			return nil
		},
	}

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepArchive, stepErr.Step)

	assert.Equal(t, delivery.CopyStatusPending, res.ArchiveStatus)
	assert.Equal(t, 10, c.checks)
	assert.Equal(t, 9, sleeps)
	assert.Equal(t, []string{"copy-42"}, c.aborts)
	assert.False(t, res.Deleted)
	assert.True(t, env.exists(t, env.srcDir, "invoice.pdf"))
	assert.True(t, env.exists(t, env.destDir, "invoice.pdf"), "upload happened before the archive step")
	assertSteps(t, res, map[Step]string{
		StepUpload:  StatusSuccess,
		StepArchive: StatusFailed,
		StepDelete:  StatusSkipped,
	})
}

func TestRelayDownloadFailures(t *testing.T) {
	cases := map[string]struct {
		path   string
		length int64
		want   error
	}{
		"missing blob":    {"dropzone/absent.pdf", 10, delivery.ErrSrcFileNotExist},
		"length mismatch": {"dropzone/invoice.pdf", 5000, nil},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent(c.path, c.length))
			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, StepDownload, stepErr.Step)
			if c.want != nil {
				assert.ErrorIs(t, err, c.want)
			} else {
				var integrityErr *delivery.IntegrityError
				assert.ErrorAs(t, err, &integrityErr)
			}
			assertSteps(t, res, map[Step]string{StepUpload: StatusSkipped})
			entries, _ := os.ReadDir(env.destDir)
			assert.Empty(t, entries)
			env.assertScratchEmpty(t)
		})
	}
}

func TestRelayTokenFailureStopsEverything(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.Tokens = identity.StaticTokenSource("")

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	assert.ErrorIs(t, err, identity.ErrEmptyToken)
	assertSteps(t, res, map[Step]string{
		StepToken:      StatusFailed,
		StepStorageKey: StatusSkipped,
		StepDownload:   StatusSkipped,
	})
	assert.True(t, env.exists(t, env.srcDir, "invoice.pdf"))
}

type undeletableSource struct {
	delivery.FileSource
}

func (s *undeletableSource) Delete(context.Context, string) error {
	return errors.New("This request is not authorized to perform this operation")
}

func TestRelayDeleteFailureIsReportedOnly(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.NewSource = func(context.Context, *Session) (delivery.Source, error) {
		return &undeletableSource{delivery.FileSource{FromPath: env.srcDir}}, nil
	}

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Equal(t, delivery.CopyStatusSuccess, res.ArchiveStatus)
	assertSteps(t, res, map[Step]string{StepDelete: StatusFailed})
	require.Len(t, env.reported, 1)
	assert.NotEmpty(t, env.reported[0].StageInfo.Issues)
}

func TestRelayInProgress(t *testing.T) {
	env := newTestEnv(t)
	held, err := env.pipeline.Locker.NewLock("dropzone/invoice.pdf")
	require.NoError(t, err)
	require.NoError(t, held.Lock(context.Background()))
	defer held.Unlock()

	res, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone/invoice.pdf", 4096))
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Nil(t, res)
	assert.Empty(t, env.reported)
	assert.True(t, env.exists(t, env.srcDir, "invoice.pdf"))
}

func TestRelayRejectsBadEvents(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("other/invoice.pdf", 4096))
	assert.ErrorIs(t, err, ErrForeignContainer)

	_, err = env.pipeline.Relay(context.Background(), event.NewBlobCreatedEvent("dropzone", 4096))
	assert.ErrorIs(t, err, event.ErrBadBlobPath)
}

func TestSecretsAreRedacted(t *testing.T) {
	s := Secrets{StorageKey: "storage-key", AccessKey: "access-key"}
	assert.Equal(t, "[redacted]", s.LogValue().String())
}
