package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var OpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "dex_relay_connections_open",
	Help: "Current number of server open connections.",
}) // .metricsOpenConnections

var HttpReqs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dex_relay_http_requests_total",
		Help: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	},
	[]string{"code", "method"},
)

// relays answer only once the blob is through, so the buckets run up to half an hour
var HttpDurations = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dex_relay_http_request_duration_seconds",
		Help:    "Time spent answering HTTP requests, partitioned by HTTP method.",
		Buckets: []float64{.05, .25, 1, 5, 15, 60, 300, 900, 1800},
	},
	[]string{"method"},
)

type codedResponseWriter struct {
	http.ResponseWriter
	code int
}

func (c *codedResponseWriter) WriteHeader(statusCode int) {
	c.code = statusCode
	c.ResponseWriter.WriteHeader(statusCode)
}

func TrackHTTP(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		OpenConnections.Inc()
		defer OpenConnections.Dec()
		start := time.Now()
		ww := &codedResponseWriter{
			ResponseWriter: w,
			// handlers that never call WriteHeader answer 200
			code: http.StatusOK,
		}
		handler.ServeHTTP(ww, r)
		HttpReqs.WithLabelValues(strconv.Itoa(ww.code), r.Method).Inc()
		HttpDurations.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
