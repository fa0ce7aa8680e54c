package event

import (
	"context"
	"sync"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

type MemoryBus[T Identifiable] struct {
	Chan chan T

	mu     sync.Mutex
	closed bool
}

func NewMemoryBus[T Identifiable](size int) *MemoryBus[T] {
	return &MemoryBus[T]{
		Chan: make(chan T, size),
	}
}

func (ms *MemoryBus[T]) Listen(ctx context.Context, process func(context.Context, T) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ms.Chan:
			if !ok {
				return nil
			}
			if err := process(ctx, evt); err != nil {
				logger.Error("failed to handle event", "event", evt.Identifier(), "error", err.Error())
				if evt.RetryCount() < MaxRetries {
					evt.IncrementRetryCount()
					// Retrying in a separate go routine so this doesn't block on channel write.
					go ms.Publish(ctx, evt)
				}
			}
		}
	}
}

func (ms *MemoryBus[T]) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.closed && ms.Chan != nil {
		close(ms.Chan)
	}
	ms.closed = true
	return nil
}

func (ms *MemoryBus[T]) Health(_ context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = "Memory Bus"
	return rsp.BuildUpResponse()
}

func (ms *MemoryBus[T]) Publish(_ context.Context, event T) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.Chan == nil || ms.closed {
		return nil
	}
	select {
	case ms.Chan <- event:
	default:
		go func() {
			defer func() {
				// the bus may close before a queued send goes out
				recover()
			}()
			ms.Chan <- event
		}()
	}
	return nil
}

func (ms *MemoryBus[T]) Length(_ context.Context) (float64, error) {
	return float64(len(ms.Chan)), nil
}
