package relay

import (
	"log/slog"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/delivery"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
)

type Step string

const (
	StepToken      Step = "token"
	StepStorageKey Step = "storage_key"
	StepAccessKey  Step = "access_key"
	StepDownload   Step = "download"
	StepUpload     Step = "upload"
	StepArchive    Step = "archive"
	StepDelete     Step = "delete"
)

var Steps = []Step{StepToken, StepStorageKey, StepAccessKey, StepDownload, StepUpload, StepArchive, StepDelete}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Secrets are fetched per invocation and never cached or logged.
type Secrets struct {
	StorageKey string
	AccessKey  string
}

func (s Secrets) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

type SecretNames struct {
	StorageKey string
	AccessKey  string
}

// Session is everything one invocation needs. It is built fresh for each event and dropped afterwards.
type Session struct {
	InvocationID string
	Event        *event.BlobCreated
	Token        string
	Secrets      Secrets
	Source       delivery.Source
	Destination  delivery.Destination
	Scratch      *delivery.ScratchFile
}

type StepOutcome struct {
	Step   Step
	Status string
	Err    error
}

type Result struct {
	InvocationID   string
	Blob           string
	Steps          []StepOutcome
	Size           int64
	SourceURL      string
	DestinationURL string
	ArchiveStatus  delivery.CopyStatus
	Deleted        bool
}

func (r *Result) Outcome(step Step) (StepOutcome, bool) {
	for _, o := range r.Steps {
		if o.Step == step {
			return o, true
		}
	}
	return StepOutcome{}, false
}

func (r *Result) record(step Step, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	r.Steps = append(r.Steps, StepOutcome{Step: step, Status: status, Err: err})
}

// skipRest marks every step after the last recorded one as skipped.
func (r *Result) skipRest() {
	seen := make(map[Step]bool, len(r.Steps))
	for _, o := range r.Steps {
		seen[o.Step] = true
	}
	for _, s := range Steps {
		if !seen[s] {
			r.Steps = append(r.Steps, StepOutcome{Step: s, Status: StatusSkipped})
		}
	}
}
