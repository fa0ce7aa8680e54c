package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

type Publisher[T Identifiable] interface {
	health.Checkable
	io.Closer
	Publish(ctx context.Context, event T) error
}

// Publishers fans an event out to every publisher, collecting failures.
type Publishers[T Identifiable] []Publisher[T]

func (p Publishers[T]) Publish(ctx context.Context, event T) error {
	var errs error
	for _, pub := range p {
		if err := pub.Publish(ctx, event); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (p Publishers[T]) Close() error {
	var errs error
	for _, pub := range p {
		errs = errors.Join(errs, pub.Close())
	}
	return errs
}

func (p Publishers[T]) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = "Event Publishers"
	for _, pub := range p {
		if r := pub.Health(ctx); r.Status != models.STATUS_UP {
			return r
		}
	}
	return rsp.BuildUpResponse()
}
