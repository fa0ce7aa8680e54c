package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

var ErrEmptySecret = errors.New("vault returned an empty secret value")

type SecretError struct {
	Name       string
	StatusCode int
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("failed to get secret %s: vault responded with status %d", e.Name, e.StatusCode)
}

// Forbidden reports whether the identity lacks access to the secret.
func (e *SecretError) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusUnauthorized
}

type Client struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIVersion: models.VAULT_API_VERSION,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetSecret reads the current version of a named secret. Secret values are never logged.
func (c *Client) GetSecret(ctx context.Context, token string, name string) (string, error) {
	uri := c.BaseURL + "/secrets/" + url.PathEscape(name)
	logger.Info("fetching secret", "uri", uri)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("api-version", c.APIVersion)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach vault for secret %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &SecretError{Name: name, StatusCode: resp.StatusCode}
	}

	var sr models.SecretResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("failed to decode secret %s: %w", name, err)
	}
	if sr.Value == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, name)
	}
	return sr.Value, nil
}

// StaticSecrets serves secrets from memory for local runs. The token is ignored.
type StaticSecrets map[string]string

func (s StaticSecrets) GetSecret(_ context.Context, _ string, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", &SecretError{Name: name, StatusCode: http.StatusNotFound}
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, name)
	}
	return v, nil
}
