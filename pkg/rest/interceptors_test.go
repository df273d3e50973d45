package rest_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

var errRejected = errors.New("rejected")

func newInterceptedCall(t *testing.T) (*rest.Call, *http.Request) {
	t.Helper()

	call := &rest.Call{Method: rest.MethodGet, URL: "https://api.example.com/1.1/users/show.json"}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, call.URL, nil)
	require.NoError(t, err)

	return call, req
}

func TestInterceptorChain_Order(t *testing.T) {
	t.Parallel()

	chain := rest.NewInterceptorChain()
	ctx := context.Background()

	var executionOrder []string

	chain.AddRequestInterceptor(func(context.Context, *rest.Call, *http.Request) error {
		executionOrder = append(executionOrder, "request first")

		return nil
	})
	chain.AddRequestInterceptor(func(context.Context, *rest.Call, *http.Request) error {
		executionOrder = append(executionOrder, "request second")

		return nil
	})
	chain.AddResponseInterceptor(func(context.Context, *rest.Call, *rest.Response, error) error {
		executionOrder = append(executionOrder, "response first")

		return nil
	})
	chain.AddResponseInterceptor(func(context.Context, *rest.Call, *rest.Response, error) error {
		executionOrder = append(executionOrder, "response second")

		return nil
	})

	call, req := newInterceptedCall(t)

	require.NoError(t, chain.ExecuteRequestInterceptors(ctx, call, req))
	require.NoError(t, chain.ExecuteResponseInterceptors(ctx, call, jsonResponse(call.URL, `{}`), nil))

	assert.Equal(t, []string{"request first", "request second", "response first", "response second"}, executionOrder)
}

func TestInterceptorChain_StopsOnError(t *testing.T) {
	t.Parallel()

	chain := rest.NewInterceptorChain()
	called := false

	chain.AddRequestInterceptor(func(context.Context, *rest.Call, *http.Request) error {
		return errRejected
	})
	chain.AddRequestInterceptor(func(context.Context, *rest.Call, *http.Request) error {
		called = true

		return nil
	})

	call, req := newInterceptedCall(t)

	err := chain.ExecuteRequestInterceptors(context.Background(), call, req)
	require.ErrorIs(t, err, errRejected)
	assert.False(t, called)
}

func TestHeaderInterceptor(t *testing.T) {
	t.Parallel()

	call, req := newInterceptedCall(t)

	err := rest.HeaderInterceptor(map[string]string{"X-Custom": "value"})(context.Background(), call, req)
	require.NoError(t, err)
	assert.Equal(t, "value", req.Header.Get("X-Custom"))
}

func TestRequestIDInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := rest.RequestIDInterceptor()

	call, req := newInterceptedCall(t)
	require.NoError(t, interceptor(context.Background(), call, req))

	id := req.Header.Get(rest.HeaderRequestID)
	assert.Len(t, id, 36)
	assert.Equal(t, id, call.Metadata["request_id"])

	call, req = newInterceptedCall(t)
	req.Header.Set(rest.HeaderRequestID, "fixed")
	require.NoError(t, interceptor(context.Background(), call, req))
	assert.Equal(t, "fixed", req.Header.Get(rest.HeaderRequestID))
}

func TestRateLimitInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := rest.RateLimitInterceptor(rate.NewLimiter(rate.Every(time.Hour), 1))
	call, req := newInterceptedCall(t)

	require.NoError(t, interceptor(context.Background(), call, req))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := interceptor(ctx, call, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestLoggingInterceptors(t *testing.T) {
	t.Parallel()

	logger := &MockLogger{}
	call, req := newInterceptedCall(t)
	ctx := context.Background()

	require.NoError(t, rest.LoggingInterceptor(logger)(ctx, call, req))
	require.NoError(t, rest.LoggingResponseInterceptor(logger)(ctx, call, jsonResponse(call.URL, `{}`), nil))
	require.NoError(t, rest.LoggingResponseInterceptor(logger)(ctx, call, nil, errRejected))

	entries := logger.Entries("debug")
	require.Len(t, entries, 3)
	assert.Equal(t, "HTTP Request", entries[0].msg)
	assert.Equal(t, "HTTP Response", entries[1].msg)
	assert.Equal(t, 200, entries[1].fields["status_code"])
	assert.Equal(t, "HTTP Response Error", entries[2].msg)
	assert.Equal(t, "rejected", entries[2].fields["error"])
}

func TestMetricsCollector(t *testing.T) {
	t.Parallel()

	collector := rest.NewMetricsCollector()
	ctx := context.Background()

	var changes []string

	collector.SetOnChange(func(endpoint string, _ rest.Metrics) {
		changes = append(changes, endpoint)
	})

	request := rest.MetricsRequestInterceptor()
	response := rest.MetricsResponseInterceptor(collector)

	call, req := newInterceptedCall(t)
	require.NoError(t, request(ctx, call, req))
	require.NoError(t, response(ctx, call, jsonResponse(call.URL, `{}`), nil))
	require.NoError(t, response(ctx, call, &rest.Response{StatusCode: http.StatusNotFound}, nil))
	require.NoError(t, response(ctx, call, nil, errRejected))

	endpoint := "GET https://api.example.com/1.1/users/show.json"

	metrics := collector.GetMetrics(endpoint)
	require.NotNil(t, metrics)
	assert.Equal(t, int64(3), metrics.TotalRequests)
	assert.Equal(t, int64(2), metrics.TotalErrors)
	assert.False(t, metrics.LastRequestTime.IsZero())
	assert.Equal(t, []string{endpoint, endpoint, endpoint}, changes)

	assert.Nil(t, collector.GetMetrics("GET https://other"))
}
