package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackHTTP(t *testing.T) {
	before := testutil.ToFloat64(HttpReqs.WithLabelValues("200", http.MethodGet))
	teapot := testutil.ToFloat64(HttpReqs.WithLabelValues("418", http.MethodPost))

	h := TrackHTTP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/relay", nil))

	if got := testutil.ToFloat64(HttpReqs.WithLabelValues("200", http.MethodGet)); got != before+1 {
		t.Errorf("expected %v GET 200 requests, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(HttpReqs.WithLabelValues("418", http.MethodPost)); got != teapot+1 {
		t.Errorf("expected %v POST 418 requests, got %v", teapot+1, got)
	}
	if got := testutil.ToFloat64(OpenConnections); got != 0 {
		t.Errorf("expected no open connections, got %v", got)
	}
	if got := testutil.CollectAndCount(HttpDurations); got != 2 {
		t.Errorf("expected a duration series per method, got %d", got)
	}
}

func TestRegisterMetricsTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("expected re-registration to be ignored, got %v", err)
	}
}

type fakeQueue struct {
	n   float64
	err error
}

func (q *fakeQueue) Length(context.Context) (float64, error) {
	return q.n, q.err
}

func TestQueuePollerPoll(t *testing.T) {
	qp := QueuePoller{queueMap: map[string]Countable{
		"blob-created": &fakeQueue{n: 7},
		"broken":       &fakeQueue{err: errors.New("unauthorized")},
	}}
	qp.poll(context.Background())

	if got := testutil.ToFloat64(CurrentMessages.WithLabelValues("blob-created")); got != 7 {
		t.Errorf("expected 7 messages, got %v", got)
	}
}
