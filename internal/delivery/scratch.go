package delivery

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"github.com/dustin/go-humanize"
)

var ErrBadInvocationId = errors.New("invalid invocation id for scratch space")

// IntegrityError means the scratch copy does not match what the source reported.
type IntegrityError struct {
	Name     string
	Check    string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("scratch copy of %s failed %s check: expected %s, got %s", e.Name, e.Check, e.Expected, e.Actual)
}

type ScratchFile struct {
	Path string
	Size int64
}

// Scratch holds one directory per invocation under Dir.
type Scratch struct {
	Dir string
}

func (s *Scratch) invocationDir(invocationId string) (string, error) {
	if invocationId == "" || strings.ContainsAny(invocationId, `/\`) || invocationId == "." || invocationId == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadInvocationId, invocationId)
	}
	return filepath.Join(s.Dir, invocationId), nil
}

// Download streams name from src into <Dir>/<invocationId>/<base name> and checks the copy against the size and
// MD5 the source declared and against expectedLength when it is positive.
func (s *Scratch) Download(ctx context.Context, src Source, invocationId string, name string, expectedLength int64) (*ScratchFile, error) {
	logger := sloger.FromContext(ctx)

	dir, err := s.invocationDir(invocationId)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	localPath := filepath.Join(dir, filepath.Base(filepath.FromSlash(name)))

	f, err := os.Create(localPath)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hash := md5.New()
	counter := &countingWriter{}
	info, err := src.Download(ctx, name, io.MultiWriter(f, hash, counter))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	written := counter.n

	if info.Size >= 0 && written != info.Size {
		return nil, &IntegrityError{Name: name, Check: "size", Expected: fmt.Sprint(info.Size), Actual: fmt.Sprint(written)}
	}
	if expectedLength > 0 && written != expectedLength {
		return nil, &IntegrityError{Name: name, Check: "event length", Expected: fmt.Sprint(expectedLength), Actual: fmt.Sprint(written)}
	}
	if sum := hash.Sum(nil); len(info.MD5) > 0 && !bytes.Equal(sum, info.MD5) {
		return nil, &IntegrityError{Name: name, Check: "md5", Expected: hex.EncodeToString(info.MD5), Actual: hex.EncodeToString(sum)}
	}

	if dur := time.Since(start); dur > 0 {
		metrics.SpeedHistograms.WithLabelValues("download").Observe(float64(written) / dur.Seconds())
	}
	logger.Info("downloaded to scratch", "path", localPath, "size", humanize.Bytes(uint64(written)))

	return &ScratchFile{Path: localPath, Size: written}, nil
}

func (s *Scratch) Cleanup(invocationId string) error {
	dir, err := s.invocationDir(invocationId)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
