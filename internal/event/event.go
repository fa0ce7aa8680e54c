package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	BlobCreatedEventType = "Microsoft.Storage.BlobCreated"
	RelayReportEventType = "BlobRelayReport"
)

var MaxRetries = 5

var ErrBadBlobPath = errors.New("blob path must name a container and a file")

type Retryable interface {
	RetryCount() int
	IncrementRetryCount()
}

// TODO better name for this interface would be Subscribable or Queueable or similar
type Identifiable interface {
	Retryable
	Identifier() string
	Type() string
	SetIdentifier(id string)
	SetType(t string)
}

type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	RetryCount int    `json:"retry_count"`
}

// BlobCreated is the trigger for one relay invocation. Path is "<container>/<blob name>".
type BlobCreated struct {
	Event
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

func NewBlobCreatedEvent(blobPath string, length int64) *BlobCreated {
	return &BlobCreated{
		Event: Event{
			Type: BlobCreatedEventType,
		},
		Path:   strings.TrimPrefix(blobPath, "/"),
		Length: length,
	}
}

func (bc *BlobCreated) RetryCount() int {
	return bc.Event.RetryCount
}

func (bc *BlobCreated) IncrementRetryCount() {
	bc.Event.RetryCount++
}

func (bc *BlobCreated) Type() string {
	return bc.Event.Type
}

func (bc *BlobCreated) SetIdentifier(id string) {
	bc.ID = id
}

func (bc *BlobCreated) SetType(t string) {
	bc.Event.Type = t
}

func (bc *BlobCreated) Identifier() string {
	return bc.Path
}

// Validate checks the path names a blob inside a container.
func (bc *BlobCreated) Validate() error {
	c, name, ok := strings.Cut(bc.Path, "/")
	if !ok || c == "" || name == "" || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", ErrBadBlobPath, bc.Path)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("%w: %q", ErrBadBlobPath, bc.Path)
		}
	}
	return nil
}

func (bc *BlobCreated) Container() string {
	c, _, _ := strings.Cut(bc.Path, "/")
	return c
}

// BlobName is the path of the blob inside its container.
func (bc *BlobCreated) BlobName() string {
	_, name, _ := strings.Cut(bc.Path, "/")
	return name
}

// FileName is the last segment of the path; it names the scratch file, the uploaded object and the archive blob.
func (bc *BlobCreated) FileName() string {
	return path.Base(bc.BlobName())
}

// eventGridEvent covers both the Event Grid and the CloudEvents schema of a storage blob event.
type eventGridEvent struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	Type      string `json:"type"`
	Subject   string `json:"subject"`
	Data      struct {
		URL           string `json:"url"`
		ContentLength int64  `json:"contentLength"`
	} `json:"data"`
}

const blobSubjectPrefix = "/blobServices/default/containers/"

// UnmarshalJSON accepts the relay's own event shape as well as storage events delivered by Event Grid.
func (bc *BlobCreated) UnmarshalJSON(b []byte) error {
	type plain BlobCreated
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Path != "" {
		*bc = BlobCreated(p)
		return nil
	}

	var eg eventGridEvent
	if err := json.Unmarshal(b, &eg); err != nil {
		return err
	}
	eventType := eg.EventType
	if eventType == "" {
		eventType = eg.Type
	}
	if eventType != BlobCreatedEventType {
		return fmt.Errorf("unsupported event type %q", eventType)
	}

	blobPath, err := blobPathFromEventGrid(eg)
	if err != nil {
		return err
	}
	*bc = BlobCreated{
		Event: Event{
			ID:   eg.ID,
			Type: BlobCreatedEventType,
		},
		Path:   blobPath,
		Length: eg.Data.ContentLength,
	}
	return nil
}

func blobPathFromEventGrid(eg eventGridEvent) (string, error) {
	if rest, ok := strings.CutPrefix(eg.Subject, blobSubjectPrefix); ok {
		c, name, ok := strings.Cut(rest, "/blobs/")
		if ok {
			return c + "/" + name, nil
		}
	}
	if eg.Data.URL != "" {
		u, err := url.Parse(eg.Data.URL)
		if err != nil {
			return "", err
		}
		return strings.TrimPrefix(u.Path, "/"), nil
	}
	return "", fmt.Errorf("%w: subject %q", ErrBadBlobPath, eg.Subject)
}
