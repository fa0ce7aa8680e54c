package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tk, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud": "https://vault.azure.net",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return tk
}

func newIdentityServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "https://vault.azure.net", r.URL.Query().Get("resource"))
		assert.Equal(t, "2017-09-01", r.URL.Query().Get("api-version"))
		if r.Header.Get("secret") != "identity-header" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestMSITokenSource(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	valid := signedToken(t, now.Add(time.Hour))
	expired := signedToken(t, now.Add(-time.Minute))

	cases := map[string]struct {
		status  int
		body    string
		want    string
		wantErr error
	}{
		"jwt token": {
			status: http.StatusOK,
			body:   fmt.Sprintf(`{"access_token":%q,"expires_on":"1792411200","token_type":"Bearer"}`, valid),
			want:   valid,
		},
		"opaque token": {
			status: http.StatusOK,
			body:   `{"access_token":"opaque-token"}`,
			want:   "opaque-token",
		},
		"expired token": {
			status:  http.StatusOK,
			body:    fmt.Sprintf(`{"access_token":%q}`, expired),
			wantErr: ErrTokenExpired,
		},
		"empty token": {
			status:  http.StatusOK,
			body:    `{"access_token":""}`,
			wantErr: ErrEmptyToken,
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			ts := newIdentityServer(t, c.status, c.body)
			src := NewMSITokenSource(ts.URL+"/msi/token", "identity-header")
			src.Now = func() time.Time { return now }

			got, err := src.Token(context.Background())
			if c.wantErr != nil {
				assert.ErrorIs(t, err, c.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestMSITokenSourceBadStatus(t *testing.T) {
	ts := newIdentityServer(t, http.StatusOK, `{"access_token":"never"}`)
	src := NewMSITokenSource(ts.URL, "wrong-header")

	_, err := src.Token(context.Background())
	var reqErr *TokenRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
}

func TestMSITokenSourceBadBody(t *testing.T) {
	ts := newIdentityServer(t, http.StatusOK, `not json`)
	src := NewMSITokenSource(ts.URL, "identity-header")

	_, err := src.Token(context.Background())
	assert.ErrorContains(t, err, "failed to decode identity response")
}

func TestMSITokenSourceUnreachable(t *testing.T) {
	ts := newIdentityServer(t, http.StatusOK, `{}`)
	ts.Close()
	src := NewMSITokenSource(ts.URL, "identity-header")

	_, err := src.Token(context.Background())
	assert.ErrorContains(t, err, "failed to reach identity endpoint")
}

type fakeCredential struct {
	token  string
	err       error
	scopes    []string
	expiresOn time.Time
}

func (f *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = opts.Scopes
	expiresOn := f.expiresOn
	if expiresOn.IsZero() {
		expiresOn = time.Now().Add(time.Hour)
	}
	return azcore.AccessToken{Token: f.token, ExpiresOn: expiresOn}, f.err
}

func TestCredentialTokenSource(t *testing.T) {
	cred := &fakeCredential{token: "from-credential"}
	src := &CredentialTokenSource{Credential: cred, Scope: "https://vault.azure.net/.default"}

	got, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-credential", got)
	assert.Equal(t, []string{"https://vault.azure.net/.default"}, cred.scopes)

	cred.token = ""
	_, err = src.Token(context.Background())
	assert.ErrorIs(t, err, ErrEmptyToken)

	cred.err = errors.New("imds unavailable")
	_, err = src.Token(context.Background())
	assert.ErrorContains(t, err, "imds unavailable")
}

func TestCredentialTokenSourceExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cred := &fakeCredential{token: "stale", expiresOn: now.Add(-time.Minute)}
	src := &CredentialTokenSource{
		Credential: cred,
		Scope:      "https://vault.azure.net/.default",
		Now:        func() time.Time { return now },
	}

	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenExpired)

	cred.expiresOn = now.Add(time.Minute)
	got, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stale", got)
}
