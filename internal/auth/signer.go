// Package auth signs outgoing requests.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// Static errors for err113 compliance.
var (
	ErrTokenURLRequired = errors.New("token URL is required for app-only authentication")
)

// Signer adds authentication to an outgoing request.
type Signer interface {
	Sign(req *http.Request, call *rest.Call) error
}

// NopSigner leaves requests unsigned.
type NopSigner struct{}

// Sign does nothing.
func (NopSigner) Sign(*http.Request, *rest.Call) error {
	return nil
}

// NewSigner picks the signer matching the credentials of config:
// a bearer token, then user-context OAuth1, then app-only OAuth2, then none.
func NewSigner(ctx context.Context, config *rest.Config, httpClient *http.Client) (Signer, error) {
	switch {
	case config.BearerToken != "":
		return NewBearerSigner(config.BearerToken), nil

	case config.ConsumerKey != "" && config.AccessToken != "":
		return NewOAuth1Signer(OAuth1Config{
			ConsumerKey:       config.ConsumerKey,
			ConsumerSecret:    config.ConsumerSecret,
			AccessToken:       config.AccessToken,
			AccessTokenSecret: config.AccessTokenSecret,
		}), nil

	case config.ConsumerKey != "":
		if config.TokenURL == "" {
			return nil, ErrTokenURLRequired
		}

		return NewAppOnlySigner(ctx, AppOnlyConfig{
			ConsumerKey:    config.ConsumerKey,
			ConsumerSecret: config.ConsumerSecret,
			TokenURL:       config.TokenURL,
			Store:          config.TokenStore,
			Logger:         config.Logger,
		}, httpClient), nil

	default:
		return NopSigner{}, nil
	}
}
