package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var DefaultMetrics = []prometheus.Collector{
	ActiveInvocations,
	InvocationTotals,
	StepTotals,
	CopyPolls,
	CopyAborts,
	SpeedHistograms,
	EventsCounter,
	CurrentMessages,
	OpenConnections,
	HttpReqs,
	HttpDurations,
}

// RegisterMetrics registers the relay collectors with reg, skipping any that are already registered.
func RegisterMetrics(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	if len(collectors) == 0 {
		collectors = DefaultMetrics
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
