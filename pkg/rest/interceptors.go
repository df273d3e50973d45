package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// HeaderRequestID is the header set by RequestIDInterceptor.
const HeaderRequestID = "X-Request-Id"

const metadataStartTime = "start_time"

// RequestInterceptor is called before a request is sent. req is the outgoing
// HTTP request and may be modified.
type RequestInterceptor func(ctx context.Context, call *Call, req *http.Request) error

// ResponseInterceptor is called after every attempt. resp is nil when the
// attempt failed without a response.
type ResponseInterceptor func(ctx context.Context, call *Call, resp *Response, callErr error) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		requestInterceptors:  make([]RequestInterceptor, 0),
		responseInterceptors: make([]ResponseInterceptor, 0),
	}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// ExecuteRequestInterceptors runs all request interceptors.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, call *Call, req *http.Request) error {
	for _, interceptor := range c.requestInterceptors {
		err := interceptor(ctx, call, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs all response interceptors.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, call *Call, resp *Response, callErr error) error {
	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, call, resp, callErr)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// LoggingInterceptor logs requests.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(_ context.Context, call *Call, _ *http.Request) error {
		logger.Debug("HTTP Request", map[string]interface{}{
			"method":      call.Method,
			"url":         call.URL,
			"skip_params": call.SkipParams,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs responses.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(_ context.Context, call *Call, resp *Response, callErr error) error {
		fields := map[string]interface{}{
			"method": call.Method,
			"url":    call.URL,
		}

		if resp != nil {
			fields["status_code"] = resp.StatusCode
		}

		if callErr != nil {
			fields["error"] = callErr.Error()
			logger.Debug("HTTP Response Error", fields)
		} else {
			logger.Debug("HTTP Response", fields)
		}

		return nil
	}
}

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(_ context.Context, _ *Call, req *http.Request) error {
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		return nil
	}
}

// RequestIDInterceptor tags every attempt with a fresh X-Request-Id unless
// the caller already set one.
func RequestIDInterceptor() RequestInterceptor {
	return func(_ context.Context, call *Call, req *http.Request) error {
		if req.Header.Get(HeaderRequestID) != "" {
			return nil
		}

		id := uuid.NewString()
		req.Header.Set(HeaderRequestID, id)
		setMetadata(call, "request_id", id)

		return nil
	}
}

// RateLimitInterceptor implements client-side rate limiting. Each attempt
// waits for a token; the wait is cancelled with ctx.
func RateLimitInterceptor(limiter *rate.Limiter) RequestInterceptor {
	return func(ctx context.Context, _ *Call, _ *http.Request) error {
		err := limiter.Wait(ctx)
		if err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}

		return nil
	}
}

// Metrics aggregates calls to one endpoint.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector collects in-process call metrics per endpoint.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metrics),
	}
}

// SetOnChange sets a callback for when metrics change.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns a snapshot of the metrics for an endpoint
// ("METHOD url"), or nil when it was never called.
func (m *MetricsCollector) GetMetrics(endpoint string) *Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metrics, ok := m.metrics[endpoint]; ok {
		snapshot := *metrics

		return &snapshot
	}

	return nil
}

func (m *MetricsCollector) record(endpoint string, latency time.Duration, failed bool) {
	m.mu.Lock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		metrics = &Metrics{}
		m.metrics[endpoint] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()
	metrics.TotalLatency += latency
	metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)

	if failed {
		metrics.TotalErrors++
	}

	snapshot := *metrics
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(endpoint, snapshot)
	}
}

// MetricsRequestInterceptor records request start time.
func MetricsRequestInterceptor() RequestInterceptor {
	return func(_ context.Context, call *Call, _ *http.Request) error {
		setMetadata(call, metadataStartTime, time.Now())

		return nil
	}
}

// MetricsResponseInterceptor records response metrics.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(_ context.Context, call *Call, resp *Response, callErr error) error {
		failed := callErr != nil || (resp != nil && resp.StatusCode >= http.StatusBadRequest)
		collector.record(fmt.Sprintf("%s %s", call.Method, call.URL), callLatency(call), failed)

		return nil
	}
}

func setMetadata(call *Call, key string, value interface{}) {
	if call.Metadata == nil {
		call.Metadata = make(map[string]interface{})
	}

	call.Metadata[key] = value
}

func callLatency(call *Call) time.Duration {
	if startTime, ok := call.Metadata[metadataStartTime].(time.Time); ok {
		return time.Since(startTime)
	}

	return 0
}
