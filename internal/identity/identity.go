package identity

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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"github.com/golang-jwt/jwt/v5"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

var (
	ErrEmptyToken   = errors.New("identity endpoint returned an empty access token")
	ErrTokenExpired = errors.New("access token is already expired")
)

// TokenRequestError is returned when the identity endpoint answers with a non-2xx status.
type TokenRequestError struct {
	StatusCode int
	Body       string
}

func (e *TokenRequestError) Error() string {
	return fmt.Sprintf("identity endpoint responded with status %d: %s", e.StatusCode, e.Body)
}

// TokenSource hands out a bearer token scoped to the vault.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// MSITokenSource talks to the app service managed identity endpoint directly.
type MSITokenSource struct {
	Endpoint   string
	Secret     string
	Resource   string
	APIVersion string
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewMSITokenSource(endpoint, secret string) *MSITokenSource {
	return &MSITokenSource{
		Endpoint:   endpoint,
		Secret:     secret,
		Resource:   models.VAULT_RESOURCE_URI,
		APIVersion: models.MSI_API_VERSION,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Now: time.Now,
	}
}

func (m *MSITokenSource) Token(ctx context.Context) (string, error) {
	u, err := url.Parse(m.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid identity endpoint: %w", err)
	}
	q := u.Query()
	q.Set("resource", m.Resource)
	q.Set("api-version", m.APIVersion)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("secret", m.Secret)

	logger.Debug("requesting access token", "endpoint", m.Endpoint, "resource", m.Resource)
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach identity endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &TokenRequestError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var tr models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", ErrEmptyToken
	}

	if err := checkExpiry(tr.AccessToken, m.now()); err != nil {
		return "", err
	}
	return tr.AccessToken, nil
}

func (m *MSITokenSource) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// CredentialTokenSource adapts an azcore credential, e.g. azidentity's managed identity credential.
type CredentialTokenSource struct {
	Credential azcore.TokenCredential
	Scope      string
	Now        func() time.Time
}

func NewManagedIdentityTokenSource(clientId string) (*CredentialTokenSource, error) {
	opts := &azidentity.ManagedIdentityCredentialOptions{}
	if clientId != "" {
		opts.ID = azidentity.ClientID(clientId)
	}
	cred, err := azidentity.NewManagedIdentityCredential(opts)
	if err != nil {
		return nil, err
	}
	return &CredentialTokenSource{
		Credential: cred,
		Scope:      models.VAULT_RESOURCE_URI + "/.default",
	}, nil
}

func (c *CredentialTokenSource) Token(ctx context.Context) (string, error) {
	tk, err := c.Credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{c.Scope},
	})
	if err != nil {
		return "", err
	}
	if tk.Token == "" {
		return "", ErrEmptyToken
	}
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	if !tk.ExpiresOn.IsZero() && !tk.ExpiresOn.After(now) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, tk.ExpiresOn.Format(time.RFC3339))
	}
	logger.Debug("acquired access token", "expires_on", tk.ExpiresOn)
	return tk.Token, nil
}

// checkExpiry reads the exp claim without verifying the signature; the vault does the verification.
// Opaque tokens pass through untouched.
func checkExpiry(token string, now time.Time) error {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		logger.Debug("access token is not a jwt, skipping expiry check")
		return nil
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !exp.Time.After(now) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	logger.Debug("access token lifetime", "remaining", exp.Time.Sub(now).String())
	return nil
}

// StaticTokenSource hands out a fixed token. Local runs use it in place of a managed identity.
type StaticTokenSource string

func (s StaticTokenSource) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrEmptyToken
	}
	return string(s), nil
}
