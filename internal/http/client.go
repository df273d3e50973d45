// Package http implements rest.Transport on top of go-retryablehttp.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/rest-dispatch/internal/auth"
	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// Client is the HTTP transport. It performs exactly one logical attempt per
// Call; the underlying retryablehttp client only repeats 5xx responses and
// connection failures, and only when RetryMax is above zero.
type Client struct {
	httpClient   *retryablehttp.Client
	signer       auth.Signer
	logger       rest.Logger
	userAgent    string
	headers      map[string]string
	timeout      time.Duration
	streamIdle   time.Duration
	debug        bool
	cache        *rest.ResponseCache
	interceptors *rest.InterceptorChain
	now          func() time.Time
}

var _ rest.Transport = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger rest.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig configures transport-level retries.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithTimeout bounds a single call. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithStreamIdleTimeout bounds the wait for the next stream line.
func WithStreamIdleTimeout(idle time.Duration) Option {
	return func(c *Client) {
		if idle > 0 {
			c.streamIdle = idle
		}
	}
}

// WithSigner sets the request signer.
func WithSigner(signer auth.Signer) Option {
	return func(c *Client) {
		if signer != nil {
			c.signer = signer
		}
	}
}

// WithCache serves GET calls from cache.
func WithCache(cache *rest.ResponseCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithInterceptors replaces the interceptor chain.
func WithInterceptors(chain *rest.InterceptorChain) Option {
	return func(c *Client) {
		if chain != nil {
			c.interceptors = chain
		}
	}
}

// WithHTTPClient sets the underlying HTTP client, e.g. to share a
// connection pool or install a custom RoundTripper.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// WithClock replaces the clock used to compute rate limit reset delays.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a transport.
func NewClient(opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		httpClient:   retryClient,
		signer:       auth.NopSigner{},
		logger:       rest.NopLogger{},
		userAgent:    constants.DefaultUserAgent,
		headers:      make(map[string]string),
		timeout:      constants.DefaultHTTPTimeout,
		streamIdle:   constants.StreamIdleTimeout,
		interceptors: rest.NewInterceptorChain(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	retryClient.Logger = &leveledLogger{logger: client.logger}

	if client.debug {
		client.interceptors.AddRequestInterceptor(rest.LoggingInterceptor(client.logger))
		client.interceptors.AddResponseInterceptor(rest.LoggingResponseInterceptor(client.logger))
	}

	return client
}

// HTTPClient returns the standard client used for streams and token
// requests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient.HTTPClient
}

// Call implements rest.Caller.
func (c *Client) Call(ctx context.Context, call *rest.Call) (*rest.Response, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Lookup(ctx, call); ok {
			c.logger.Debug("Serving response from cache", map[string]interface{}{
				"url": call.URL,
			})

			return cached, nil
		}
	}

	callCtx := ctx

	if c.timeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, callCtx, call)

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, call, resp, err)
	if err == nil && interceptErr != nil {
		err = interceptErr
	}

	if err != nil {
		return resp, err
	}

	if c.cache != nil {
		cacheErr := c.cache.Store(ctx, call, resp)
		if cacheErr != nil {
			c.logger.Warn("Failed to cache response", map[string]interface{}{
				"url":   call.URL,
				"error": cacheErr.Error(),
			})
		}
	}

	return resp, nil
}

func (c *Client) do(ctx, callCtx context.Context, call *rest.Call) (*rest.Response, error) {
	req, err := c.newRequest(ctx, callCtx, call)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, call, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, call, err)
	}

	resp := &rest.Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		URL:        call.URL,
		Body:       body,
	}

	err = classifyResponse(resp, call, c.now())
	if err != nil {
		return resp, err
	}

	return resp, nil
}

// newRequest builds the outgoing request bound to callCtx. Interceptors run
// with the caller's ctx and are not bounded by the call timeout.
func (c *Client) newRequest(ctx, callCtx context.Context, call *rest.Call) (*retryablehttp.Request, error) {
	target, err := url.Parse(call.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL %q: %w", rest.ErrTransport, call.URL, err)
	}

	if len(call.Args.Query) > 0 {
		query := target.Query()
		for key, list := range call.Args.Query {
			query[key] = append(query[key], list...)
		}

		target.RawQuery = query.Encode()
	}

	body, contentType, err := encodeBody(call)
	if err != nil {
		return nil, err
	}

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(callCtx, string(call.Method), target.String(), rawBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", rest.ErrTransport, err)
	}

	c.prepareHeaders(req.Request, call, contentType)

	err = c.interceptors.ExecuteRequestInterceptors(ctx, call, req.Request)
	if err != nil {
		return nil, err
	}

	err = c.signer.Sign(req.Request, call)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	return req, nil
}

func (c *Client) prepareHeaders(req *http.Request, call *rest.Call, contentType string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	for key, values := range call.Headers {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}

		req.Header[http.CanonicalHeaderKey(key)] = values
	}
}
