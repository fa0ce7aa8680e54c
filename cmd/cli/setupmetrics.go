package cli

import (
	"context"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
) // .import

func setupMetrics(m ...prometheus.Collector) error {
	if err := metrics.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	if len(m) > 0 {
		return metrics.RegisterMetrics(prometheus.DefaultRegisterer, m...)
	}
	return nil
} // setupMetrics

func StartQueuePoller(ctx context.Context, pollInterval time.Duration) {
	metrics.DefaultPoller.Start(ctx, pollInterval)
}
