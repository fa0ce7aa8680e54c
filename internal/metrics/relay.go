package metrics

import "github.com/prometheus/client_golang/prometheus"

var ActiveInvocations = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "dex_relay_active_invocations",
	Help: "Gauge showing number of relay invocations in progress",
})

var InvocationTotals = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dex_relay_invocations_total",
	Help: "Number of relay invocations that have been handled, partitioned by outcome",
}, []string{"result"})

var StepTotals = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dex_relay_steps_total",
	Help: "Number of relay pipeline steps run, partitioned by step and outcome",
}, []string{"step", "result"})

var CopyPolls = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "dex_relay_copy_polls_total",
	Help: "Number of archive copy status checks",
})

var CopyAborts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "dex_relay_copy_aborts_total",
	Help: "Number of archive copies aborted after the poll budget ran out",
})

var SpeedHistograms = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dex_relay_speed_bytes_per_second",
	Help:    "File transfer speed distribution",
	Buckets: prometheus.ExponentialBuckets(10, 2.5, 20),
}, []string{"step"})
