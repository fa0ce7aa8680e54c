package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

type staticCheck struct {
	resp models.ServiceHealthResp
}

func (s staticCheck) Health(_ context.Context) models.ServiceHealthResp {
	return s.resp
}

func TestRegistryServeHTTP(t *testing.T) {
	up := staticCheck{models.ServiceHealthResp{Service: "up"}.BuildUpResponse()}
	down := staticCheck{models.ServiceHealthResp{Service: "down"}.BuildErrorResponse(errors.New("unreachable"))}
	degraded := staticCheck{models.ServiceHealthResp{Service: "slow", Status: models.STATUS_DEGRADED}}

	cases := map[string]struct {
		checks     []Checkable
		wantStatus string
		wantCode   int
	}{
		"no checks": {nil, models.STATUS_UP, http.StatusOK},
		"all up":    {[]Checkable{up, up}, models.STATUS_UP, http.StatusOK},
		"one down":  {[]Checkable{up, down}, models.STATUS_DOWN, http.StatusServiceUnavailable},
		"degraded":  {[]Checkable{up, degraded}, models.STATUS_DEGRADED, http.StatusOK},
		"down wins": {[]Checkable{down, degraded}, models.STATUS_DOWN, http.StatusServiceUnavailable},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			r := &Registry{}
			if err := r.Register(c.checks...); err != nil {
				t.Fatal(err)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != c.wantCode {
				t.Errorf("expected code %d, got %d", c.wantCode, rec.Code)
			}
			var resp models.HealthResp
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != c.wantStatus {
				t.Errorf("expected status %s, got %s", c.wantStatus, resp.Status)
			}
			if len(resp.Services) != len(c.checks) {
				t.Errorf("expected %d services, got %d", len(c.checks), len(resp.Services))
			}
		})
	}
}

func TestRegisterNil(t *testing.T) {
	r := &Registry{}
	if err := r.Register(nil); !errors.Is(err, ErrNilCheck) {
		t.Fatalf("expected ErrNilCheck, got %v", err)
	}
}
