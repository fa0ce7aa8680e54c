package models

// TokenResponse is the body returned by the managed identity endpoint.
// expires_on is sent as a string of epoch seconds by the 2017-09-01 api version.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresOn   string `json:"expires_on"`
	Resource    string `json:"resource"`
	TokenType   string `json:"token_type"`
}

// SecretResponse is the subset of a vault secret bundle the relay reads.
type SecretResponse struct {
	Value       string `json:"value"`
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
}
