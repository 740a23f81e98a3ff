package tutor

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// CredentialsConfig holds optional OAuth2 client credentials for the service
type CredentialsConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether all credentials are present
func (c CredentialsConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}

// NewHTTPClient returns a client that attaches bearer tokens obtained with the
// client-credentials grant. Without credentials it returns a plain client.
func NewHTTPClient(ctx context.Context, creds CredentialsConfig, timeout time.Duration) *http.Client {
	base := &http.Client{Timeout: timeout}
	if !creds.Enabled() {
		return base
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}
	// The token fetch itself uses the base client so it shares the timeout.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = timeout
	return client
}
