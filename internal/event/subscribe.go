package event

import (
	"context"
	"io"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

type Subscribable[T Identifiable] interface {
	health.Checkable
	io.Closer
	Listen(context.Context, func(context.Context, T) error) error
}

// EventLoggerProcessor hands the next processor a context whose logger is tagged with the event id and type.
func EventLoggerProcessor[T Identifiable](next func(context.Context, T) error) func(context.Context, T) error {
	return func(ctx context.Context, e T) error {
		l := sloger.FromContext(ctx).With("event_id", e.Identifier(), "event_type", e.Type())
		return next(sloger.WithLogger(ctx, l), e)
	}
}

// CountingProcessor records the outcome of every event handled on queue.
func CountingProcessor[T Identifiable](queue string, next func(context.Context, T) error) func(context.Context, T) error {
	return func(ctx context.Context, e T) error {
		metrics.EventsCounter.WithLabelValues(queue, "received").Inc()
		err := next(ctx, e)
		if err != nil {
			metrics.EventsCounter.WithLabelValues(queue, "failed").Inc()
			return err
		}
		metrics.EventsCounter.WithLabelValues(queue, "completed").Inc()
		return nil
	}
}
