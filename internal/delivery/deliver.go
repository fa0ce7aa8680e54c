package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/stores3"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

var (
	ErrSrcFileNotExist   = errors.New("source file does not exist")
	ErrLocalFileNotExist = errors.New("local file does not exist")
	// ErrMissingCredentials covers both absent and rejected object store keys.
	ErrMissingCredentials = stores3.ErrMissingCredentials
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

// SourceInfo is what the source reported about a blob while it was streamed.
// Size is -1 when the source did not declare a length.
type SourceInfo struct {
	Size int64
	MD5  []byte
}

type Source interface {
	health.Checkable
	Download(ctx context.Context, name string, w io.Writer) (SourceInfo, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

type Destination interface {
	health.Checkable
	Upload(ctx context.Context, localPath string, objectName string) (string, error)
}
