package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/appconfig"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/relay"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Relayer interface {
	Relay(ctx context.Context, e *event.BlobCreated) (*relay.Result, error)
}

// Serve routes the functions custom handler, the relay endpoints and the operational endpoints.
// When bus is set, POST /events queues blob events on it for the listener.
func Serve(appConfig appconfig.AppConfig, relayer Relayer, bus event.Publisher[*event.BlobCreated]) (http.Handler, error) {
	if err := setupMetrics(); err != nil {
		return nil, err
	}

	router := mux.NewRouter()

	// --------------------------------------------------------------
	// 	functions host custom handler, invoked once per blob trigger
	// --------------------------------------------------------------
	router.Handle("/relay", &RelayHandler{Relayer: relayer}).Methods(http.MethodPost)
	router.Handle("/"+appConfig.FunctionName, &FunctionHandler{Relayer: relayer}).Methods(http.MethodPost)
	if bus != nil {
		router.Handle("/events", &EventsHandler{Publisher: bus}).Methods(http.MethodPost)
	}

	router.Handle("/", appconfig.Handler()).Methods(http.MethodGet)
	router.Handle("/health", health.Handler()).Methods(http.MethodGet)
	router.Handle("/version", &VersionHandler{}).Methods(http.MethodGet)

	// --------------------------------------------------------------
	// 	Prometheus metrics handler for /metrics
	// --------------------------------------------------------------
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router, nil
}

type RelayResponse struct {
	InvocationID   string         `json:"invocation_id"`
	Blob           string         `json:"blob"`
	Size           int64          `json:"size"`
	DestinationURL string         `json:"destination_url,omitempty"`
	ArchiveStatus  string         `json:"archive_status,omitempty"`
	Deleted        bool           `json:"deleted"`
	Steps          []StepResponse `json:"steps"`
	Error          string         `json:"error,omitempty"`
}

type StepResponse struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func newRelayResponse(res *relay.Result, err error) RelayResponse {
	var rr RelayResponse
	if res != nil {
		rr = RelayResponse{
			InvocationID:   res.InvocationID,
			Blob:           res.Blob,
			Size:           res.Size,
			DestinationURL: res.DestinationURL,
			ArchiveStatus:  string(res.ArchiveStatus),
			Deleted:        res.Deleted,
		}
		for _, o := range res.Steps {
			sr := StepResponse{Step: string(o.Step), Status: o.Status}
			if o.Err != nil {
				sr.Error = o.Err.Error()
			}
			rr.Steps = append(rr.Steps, sr)
		}
	}
	if err != nil {
		rr.Error = err.Error()
	}
	return rr
}

// relayStatus maps a relay error onto the http status handed back to the caller.
func relayStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, event.ErrBadBlobPath), errors.Is(err, relay.ErrForeignContainer):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type relayRequest struct {
	Path   string `json:"path"`
	Length *int64 `json:"length"`
}

type RelayHandler struct {
	Relayer Relayer
}

func (rh *RelayHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var body relayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(rw, fmt.Sprintf("invalid relay request: %s", err), http.StatusBadRequest)
		return
	}
	length := int64(-1)
	if body.Length != nil {
		length = *body.Length
	}

	res, err := rh.Relayer.Relay(r.Context(), event.NewBlobCreatedEvent(body.Path, length))
	writeJSON(r.Context(), rw, relayStatus(err), newRelayResponse(res, err))
}

// FunctionRequest is the payload the functions host posts to a custom handler for a blob trigger.
type FunctionRequest struct {
	Data     map[string]json.RawMessage `json:"Data"`
	Metadata FunctionMetadata           `json:"Metadata"`
}

type FunctionMetadata struct {
	BlobTrigger string `json:"BlobTrigger"`
	Uri         string `json:"Uri"`
	Properties  struct {
		Length *int64 `json:"Length"`
	} `json:"Properties"`
}

type FunctionResponse struct {
	Outputs     map[string]any `json:"Outputs"`
	Logs        []string       `json:"Logs"`
	ReturnValue any            `json:"ReturnValue"`
}

type FunctionHandler struct {
	Relayer Relayer
}

func (fh *FunctionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var req FunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(rw, fmt.Sprintf("invalid functions host request: %s", err), http.StatusBadRequest)
		return
	}
	length := int64(-1)
	if req.Metadata.Properties.Length != nil {
		length = *req.Metadata.Properties.Length
	}

	res, err := fh.Relayer.Relay(r.Context(), event.NewBlobCreatedEvent(req.Metadata.BlobTrigger, length))
	rr := newRelayResponse(res, err)

	resp := FunctionResponse{
		Outputs:     map[string]any{},
		Logs:        []string{fmt.Sprintf("relayed %s", req.Metadata.BlobTrigger)},
		ReturnValue: rr,
	}
	if err != nil {
		resp.Logs = []string{fmt.Sprintf("relay of %s failed: %s", req.Metadata.BlobTrigger, err)}
	}
	writeJSON(r.Context(), rw, relayStatus(err), resp)
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		sloger.FromContext(ctx).Error("error marshal json response", "error", err)
		http.Error(rw, "error marshal json response", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	rw.Write(b)
}
