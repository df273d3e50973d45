package rest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, map[string]interface{}) {}
func (NopLogger) Info(string, map[string]interface{})  {}
func (NopLogger) Warn(string, map[string]interface{})  {}
func (NopLogger) Error(string, map[string]interface{}) {}

// TokenStore persists the app-only bearer token so that it is not
// requested again by every new client.
type TokenStore interface {
	// LoadToken returns the stored token, or "" when there is none. A zero
	// expiresAt means the token does not expire.
	LoadToken() (token string, expiresAt time.Time)
	SaveToken(token string, expiresAt time.Time) error
}

// Config represents client configuration for building an API.
//
// # Authentication precedence
//
// The concrete client (see pkg/restclient) picks the first match:
//  1. BearerToken: sent as a static Bearer token.
//  2. ConsumerKey/ConsumerSecret + AccessToken/AccessTokenSecret: OAuth1
//     HMAC-SHA1 request signing.
//  3. ConsumerKey/ConsumerSecret alone: OAuth2 client_credentials grant
//     against TokenURL (app-only auth).
//  4. No credentials: requests are sent unsigned.
//
// # Retries
//
// Rate limit and timeout failures are retried without bound by the
// RetryingInvoker unless DisableErrorHandling is set. RetryMax/RetryWaitMin/
// RetryWaitMax separately control transport-level retries of 5xx responses
// and connection errors, which are off by default.
type Config struct {
	// BaseURL is a template such as "https://{api}.example.com/{version}".
	BaseURL string
	// APIVersion fills the {version} placeholder.
	APIVersion string
	// Suffix is appended to every endpoint URL. Empty means ".json".
	Suffix string
	// StreamingAPIs lists subdomains served as long-lived streams.
	StreamingAPIs []string

	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
	// TokenURL is the OAuth2 token endpoint used for app-only auth.
	TokenURL string
	// TokenStore keeps app-only tokens between processes. Optional.
	TokenStore TokenStore

	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Headers are added to every request.
	Headers map[string]string
	// HTTPTimeout bounds a single call. A call exceeding it fails with
	// TimeoutError.
	HTTPTimeout time.Duration

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// DisableErrorHandling removes the retry wrapper from every call.
	DisableErrorHandling bool

	// RateLimit caps outgoing requests per second. Zero disables it.
	RateLimit float64
	// RateBurst is the limiter burst size. Defaults to 1.
	RateBurst int

	// Cache enables caching of successful GET responses.
	Cache *CacheConfig
	// MetricsRegisterer enables Prometheus metrics when set.
	MetricsRegisterer prometheus.Registerer

	// Debug enables request/response logging at debug level.
	Debug bool
	// Logger receives structured logs. Defaults to NopLogger.
	Logger Logger
}
