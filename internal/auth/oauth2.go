package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// AppOnlyConfig holds the application credentials of the client
// credentials grant.
type AppOnlyConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	TokenURL       string
	// Store persists tokens between processes. Optional.
	Store  rest.TokenStore
	Logger rest.Logger
}

// AppOnlySigner authenticates as the application with a bearer token
// obtained through the OAuth2 client credentials grant. Tokens are fetched
// lazily and reused until they expire.
type AppOnlySigner struct {
	source oauth2.TokenSource
}

// NewAppOnlySigner creates a signer. httpClient is used for token requests
// when not nil.
func NewAppOnlySigner(ctx context.Context, config AppOnlyConfig, httpClient *http.Client) *AppOnlySigner {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	grant := &clientcredentials.Config{
		ClientID:     config.ConsumerKey,
		ClientSecret: config.ConsumerSecret,
		TokenURL:     config.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	source := grant.TokenSource(ctx)
	if config.Store != nil {
		source = NewStoredTokenSource(source, config.Store, config.Logger)
	}

	return &AppOnlySigner{
		source: source,
	}
}

// Sign sets the bearer Authorization header.
func (s *AppOnlySigner) Sign(req *http.Request, _ *rest.Call) error {
	token, err := s.source.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain app-only token: %w", err)
	}

	token.SetAuthHeader(req)

	return nil
}

// BearerSigner sends a fixed bearer token.
type BearerSigner struct {
	token string
}

// NewBearerSigner creates a signer for token.
func NewBearerSigner(token string) *BearerSigner {
	return &BearerSigner{token: token}
}

// Sign sets the bearer Authorization header.
func (s *BearerSigner) Sign(req *http.Request, _ *rest.Call) error {
	req.Header.Set("Authorization", "Bearer "+s.token)

	return nil
}
