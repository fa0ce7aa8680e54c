package reports

import (
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
)

const StageBlobRelay = "dex-blob-relay"
const DispositionTypeAdd = "add"

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

type Report struct {
	event.Event
	ReportSchemaVersion string          `json:"report_schema_version"`
	InvocationID        string          `json:"invocation_id"`
	Blob                string          `json:"blob"`
	ContentType         string          `json:"content_type"`
	DispositionType     string          `json:"disposition_type"`
	StageInfo           ReportStageInfo `json:"stage_info"`
	Content             RelayContent    `json:"content"`
}

type ReportStageInfo struct {
	Service          string   `json:"service"`
	Stage            string   `json:"stage"`
	Version          string   `json:"version"`
	Status           string   `json:"status"`
	Issues           []string `json:"issues"`
	StartProcessTime string   `json:"start_process_time"`
	EndProcessTime   string   `json:"end_process_time"`
}

func (r *Report) Identifier() string {
	return r.InvocationID
}

func (r *Report) RetryCount() int {
	return r.Event.RetryCount
}

func (r *Report) IncrementRetryCount() {
	r.Event.RetryCount++
}

func (r *Report) Type() string {
	return r.Event.Type
}

func (r *Report) SetIdentifier(id string) {
	r.ID = id
}

func (r *Report) SetType(t string) {
	r.Event.Type = t
}

type ReportContent struct {
	SchemaName    string `json:"schema_name"`
	SchemaVersion string `json:"schema_version"`
}

type StepContent struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type RelayContent struct {
	ReportContent
	SourceUrl      string        `json:"source_url"`
	DestinationUrl string        `json:"destination_url"`
	ArchiveStatus  string        `json:"archive_status"`
	Size           int64         `json:"size"`
	Steps          []StepContent `json:"steps"`
}

type Builder interface {
	SetInvocationId(string) Builder
	SetBlob(string) Builder
	AppendIssue(string) Builder
	SetStatus(string) Builder
	SetStartTime(time.Time) Builder
	SetEndTime(time.Time) Builder
	SetService(name string, version string) Builder
	SetContent(RelayContent) Builder
	Build() *Report
}

func NewBuilder(version string, stage string, invocationId string, dispType string) Builder {
	return &ReportBuilder{
		Version:         version,
		Stage:           stage,
		InvocationId:    invocationId,
		DispositionType: dispType,
	}
}

type ReportBuilder struct {
	Stage           string
	Version         string
	InvocationId    string
	Blob            string
	Issues          []string
	Status          string
	StartTime       time.Time
	EndTime         time.Time
	DispositionType string
	ServiceName     string
	ServiceVersion  string
	Content         RelayContent
}

func (b *ReportBuilder) SetInvocationId(id string) Builder {
	b.InvocationId = id
	return b
}

func (b *ReportBuilder) SetBlob(blob string) Builder {
	b.Blob = blob
	return b
}

func (b *ReportBuilder) SetStatus(s string) Builder {
	b.Status = s
	return b
}

func (b *ReportBuilder) AppendIssue(i string) Builder {
	b.Issues = append(b.Issues, i)
	return b
}

func (b *ReportBuilder) SetStartTime(t time.Time) Builder {
	b.StartTime = t
	return b
}

func (b *ReportBuilder) SetEndTime(t time.Time) Builder {
	b.EndTime = t
	return b
}

func (b *ReportBuilder) SetService(name string, version string) Builder {
	b.ServiceName = name
	b.ServiceVersion = version
	return b
}

func (b *ReportBuilder) SetContent(c RelayContent) Builder {
	b.Content = c
	return b
}

func (b *ReportBuilder) Build() *Report {
	content := b.Content
	content.SchemaName = b.Stage
	content.SchemaVersion = b.Version
	return &Report{
		Event: event.Event{
			Type: event.RelayReportEventType,
		},
		ReportSchemaVersion: b.Version,
		InvocationID:        b.InvocationId,
		Blob:                b.Blob,
		ContentType:         "application/json",
		DispositionType:     b.DispositionType,
		StageInfo: ReportStageInfo{
			Issues:           b.Issues,
			Stage:            b.Stage,
			Service:          b.ServiceName,
			Version:          b.ServiceVersion,
			Status:           b.Status,
			StartProcessTime: b.StartTime.UTC().Format(time.RFC3339Nano),
			EndProcessTime:   b.EndTime.UTC().Format(time.RFC3339Nano),
		},
		Content: content,
	}
}
