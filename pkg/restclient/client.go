package restclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/rest-dispatch/internal/auth"
	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	resthttp "github.com/fivetwenty-io/rest-dispatch/internal/http"
	"github.com/fivetwenty-io/rest-dispatch/internal/params"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// Client is a fully wired API together with the resources it owns.
type Client struct {
	*rest.API

	transport *resthttp.Client
	cache     *rest.ResponseCache
	backend   rest.Cache
	metrics   *rest.PrometheusMetrics
}

// New creates a client from config. Missing endpoint settings fall back to
// the package defaults; credentials select the signer as documented on
// rest.Config.
func New(ctx context.Context, config *rest.Config) (*Client, error) {
	if config == nil {
		return nil, rest.ErrConfigRequired
	}

	cfg := withDefaults(*config)

	client := &Client{}

	httpClient := &http.Client{}

	signer, err := auth.NewSigner(ctx, &cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("configuring authentication: %w", err)
	}

	chain := rest.NewInterceptorChain()
	chain.AddRequestInterceptor(rest.RequestIDInterceptor())

	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		chain.AddRequestInterceptor(rest.RateLimitInterceptor(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	if cfg.MetricsRegisterer != nil {
		client.metrics, err = rest.NewPrometheusMetrics(cfg.MetricsRegisterer)
		if err != nil {
			return nil, err
		}

		chain.AddRequestInterceptor(client.metrics.RequestInterceptor())
		chain.AddResponseInterceptor(client.metrics.ResponseInterceptor())
	}

	opts := []resthttp.Option{
		resthttp.WithHTTPClient(httpClient),
		resthttp.WithLogger(cfg.Logger),
		resthttp.WithDebug(cfg.Debug),
		resthttp.WithUserAgent(cfg.UserAgent),
		resthttp.WithHeaders(cfg.Headers),
		resthttp.WithTimeout(cfg.HTTPTimeout),
		resthttp.WithRetryConfig(cfg.RetryMax, cfg.RetryWaitMin, cfg.RetryWaitMax),
		resthttp.WithSigner(signer),
		resthttp.WithInterceptors(chain),
	}

	if cfg.Cache != nil {
		client.backend, err = rest.NewCacheFromConfig(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}

		client.cache = rest.NewResponseCache(client.backend, cfg.Cache.Options)
		opts = append(opts, resthttp.WithCache(client.cache))
	}

	client.transport = resthttp.NewClient(opts...)

	var errorHandler rest.ErrorHandler
	if !cfg.DisableErrorHandling {
		retryOpts := []rest.RetryOption{rest.WithRetryLogger(cfg.Logger)}
		if client.metrics != nil {
			retryOpts = append(retryOpts, rest.WithRetryObserver(client.metrics))
		}

		errorHandler = rest.DefaultErrorHandler(retryOpts...)
	}

	client.API, err = rest.NewAPI(rest.APIConfig{
		BaseURL:       cfg.BaseURL,
		Version:       cfg.APIVersion,
		Suffix:        cfg.Suffix,
		StreamingAPIs: cfg.StreamingAPIs,
		Resolver:      params.NewResolver(),
		Transport:     client.transport,
		ErrorHandler:  errorHandler,
	})
	if err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to create API: %w", err)
	}

	cfg.Logger.Debug("Client created", map[string]interface{}{
		"base_url": cfg.BaseURL,
		"version":  cfg.APIVersion,
	})

	return client, nil
}

// NewWithBearerToken creates a client authenticated with a bearer token.
func NewWithBearerToken(ctx context.Context, token string) (*Client, error) {
	return New(ctx, &rest.Config{BearerToken: token})
}

// NewWithOAuth1 creates a client acting on behalf of a user.
func NewWithOAuth1(ctx context.Context, consumerKey, consumerSecret, accessToken, accessTokenSecret string) (*Client, error) {
	return New(ctx, &rest.Config{
		ConsumerKey:       consumerKey,
		ConsumerSecret:    consumerSecret,
		AccessToken:       accessToken,
		AccessTokenSecret: accessTokenSecret,
	})
}

// NewAppOnly creates a client authenticated as the application through the
// OAuth2 client credentials grant.
func NewAppOnly(ctx context.Context, consumerKey, consumerSecret string) (*Client, error) {
	return New(ctx, &rest.Config{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
	})
}

// Transport returns the HTTP transport.
func (c *Client) Transport() *resthttp.Client {
	return c.transport
}

// CacheStats returns response cache counters. ok is false when caching is
// disabled.
func (c *Client) CacheStats() (rest.CacheStats, bool) {
	if c.cache == nil {
		return rest.CacheStats{}, false
	}

	return c.cache.Stats(), true
}

// VerifyCredentials fetches the authenticated account.
func (c *Client) VerifyCredentials(ctx context.Context) (*rest.Response, error) {
	resp, err := c.Subdomain("api").Path("account", "verify_credentials").Get().
		Dispatch(ctx, rest.Args{}, rest.CallOptions{JSON: true})
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}

	return resp, nil
}

// Close releases the resources owned by the client.
func (c *Client) Close() {
	if closer, ok := c.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

func withDefaults(cfg rest.Config) rest.Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultBaseURL
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.APIVersion == "" {
		cfg.APIVersion = constants.DefaultAPIVersion
	}

	if cfg.StreamingAPIs == nil {
		cfg.StreamingAPIs = constants.DefaultStreamingAPIs()
	}

	if cfg.TokenURL == "" {
		cfg.TokenURL = constants.DefaultTokenURL
	}

	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = constants.DefaultHTTPTimeout
	}

	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = constants.DefaultRetryWaitMin
	}

	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = constants.DefaultRetryWaitMax
	}

	if cfg.Logger == nil {
		cfg.Logger = rest.NopLogger{}
	}

	return cfg
}
