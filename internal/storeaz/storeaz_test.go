package storeaz

import (
	"context"
	"testing"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

func TestBlobURL(t *testing.T) {
	cases := map[string]struct {
		endpoint, container, name, want string
	}{
		"plain":    {"https://adlcert.blob.core.windows.net", "dropzone", "invoice.pdf", "https://adlcert.blob.core.windows.net/dropzone/invoice.pdf"},
		"trailing": {"https://adlcert.blob.core.windows.net/", "dropzone", "invoice.pdf", "https://adlcert.blob.core.windows.net/dropzone/invoice.pdf"},
		"nested":   {"http://azurite:10000/devstoreaccount1", "dropzone", "2026/10/a b.csv", "http://azurite:10000/devstoreaccount1/dropzone/2026/10/a%20b.csv"},
	}
	for name, c := range cases {
		if got := BlobURL(c.endpoint, c.container, c.name); got != c.want {
			t.Errorf("%s: expected %s, got %s", name, c.want, got)
		}
	}
}

func TestClientGuards(t *testing.T) {
	if _, err := NewSharedKeyClient("", "key", "https://x"); err != errStorageNameEmpty {
		t.Errorf("expected errStorageNameEmpty, got %v", err)
	}
	if _, err := NewSharedKeyClient("adlcert", " ", "https://x"); err != errStorageKeyEmpty {
		t.Errorf("expected errStorageKeyEmpty, got %v", err)
	}
	if _, err := NewSharedKeyClient("adlcert", "a2V5", ""); err != errStorageEndpointEmpty {
		t.Errorf("expected errStorageEndpointEmpty, got %v", err)
	}
	if _, err := NewConnectionStringClient(""); err != errStorageConnectionStringEmpty {
		t.Errorf("expected errStorageConnectionStringEmpty, got %v", err)
	}
	if _, err := NewContainerClient(nil, "archive"); err == nil {
		t.Errorf("expected error for nil client")
	}
}

func TestContainerHealthCheckNilClient(t *testing.T) {
	hc := &ContainerHealthCheck{Prefix: models.ARCHIVE_STORAGE_HEALTH_PREFIX}
	rsp := hc.Health(context.Background())
	if rsp.Status != models.STATUS_DOWN {
		t.Errorf("expected %s, got %s", models.STATUS_DOWN, rsp.Status)
	}
	if rsp.HealthIssue != models.AZ_BLOB_CLIENT_NA {
		t.Errorf("unexpected health issue %s", rsp.HealthIssue)
	}
}
