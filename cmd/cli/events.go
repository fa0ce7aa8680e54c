package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/appconfig"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
)

const memoryQueueName = "memory"

// NewEventSubscriber returns the service bus subscriber when one is configured.
// Otherwise events come in through an in-memory bus fed by POST /events.
func NewEventSubscriber(ctx context.Context, appConfig appconfig.AppConfig) (event.Subscribable[*event.BlobCreated], string, error) {
	if appConfig.SubscriberConnection != nil {
		sub, err := event.NewAzureSubscriber[*event.BlobCreated](ctx, *appConfig.SubscriberConnection)
		if err != nil {
			return nil, "", err
		}
		health.Register(sub)

		name := appConfig.SubscriberConnection.Queue
		if name == "" {
			name = appConfig.SubscriberConnection.Topic + "/" + appConfig.SubscriberConnection.Subscription
		}
		return sub, name, nil
	}

	bus := event.NewMemoryBus[*event.BlobCreated](64)
	health.Register(bus)
	return bus, memoryQueueName, nil
}

// Listen relays every blob created event received on sub until ctx is done.
func Listen(ctx context.Context, sub event.Subscribable[*event.BlobCreated], queueName string, relayer Relayer) error {
	metrics.RegisterQueue(queueName, sub)

	process := func(ctx context.Context, e *event.BlobCreated) error {
		_, err := relayer.Relay(ctx, e)
		return err
	}

	logger.Info("listening for blob events", "queue", queueName)
	return sub.Listen(ctx, event.EventLoggerProcessor(event.CountingProcessor(queueName, TracingProcessor(process))))
}

// EventsHandler accepts blob created events over http and puts them on the bus.
type EventsHandler struct {
	Publisher event.Publisher[*event.BlobCreated]
}

func (eh *EventsHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var e event.BlobCreated
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(rw, fmt.Sprintf("invalid blob event: %s", err), http.StatusBadRequest)
		return
	}
	if err := e.Validate(); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	// a missing length means unknown
	if e.Length == 0 {
		e.Length = -1
	}
	if err := eh.Publisher.Publish(r.Context(), &e); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.WriteHeader(http.StatusAccepted)
}
