package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

var ErrNilCheck = errors.New("nil health check")

type Checkable interface {
	Health(ctx context.Context) models.ServiceHealthResp
}

type Registry struct {
	mu     sync.RWMutex
	checks []Checkable
}

var DefaultRegistry = &Registry{}

func Register(checks ...Checkable) error {
	return DefaultRegistry.Register(checks...)
}

func Handler() http.Handler {
	return DefaultRegistry
}

func (r *Registry) Register(checks ...Checkable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs error
	for _, c := range checks {
		if c == nil {
			errs = errors.Join(errs, ErrNilCheck)
			continue
		}
		r.checks = append(r.checks, c)
	}
	return errs
}

// Check runs every registered check; overall status is DOWN if any service is down.
func (r *Registry) Check(ctx context.Context) models.HealthResp {
	r.mu.RLock()
	checks := make([]Checkable, len(r.checks))
	copy(checks, r.checks)
	r.mu.RUnlock()

	resp := models.HealthResp{
		Status:   models.STATUS_UP,
		Services: []models.ServiceHealthResp{},
	}
	for _, c := range checks {
		shr := c.Health(ctx)
		switch {
		case shr.Status == models.STATUS_DOWN:
			resp.Status = models.STATUS_DOWN
		case shr.Status != models.STATUS_UP && resp.Status != models.STATUS_DOWN:
			resp.Status = models.STATUS_DEGRADED
		}
		resp.Services = append(resp.Services, shr)
	}
	return resp
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	resp := r.Check(req.Context())

	b, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "error marshal json for health response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == models.STATUS_DOWN {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Write(b)
}
