package rest_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

var errResolve = errors.New("cannot resolve")

func newTestInvoker(method rest.Method, transport rest.Transport, resolver rest.ParameterResolver, handler rest.ErrorHandler) *rest.RequestInvoker {
	op := rest.NewOperation(method, "https://api.example.com/1.1", ".json", "statuses", "show")

	return rest.NewRequestInvoker(op, resolver, transport, handler, nil)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestRequestInvoker_Build(t *testing.T) {
	t.Parallel()

	t.Run("GET parameters go to the query", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodGet, &MockTransport{}, &MockResolver{}, nil)

		call, err := invoker.Build(rest.Args{"id": 20}, rest.CallOptions{})
		require.NoError(t, err)

		assert.Equal(t, rest.MethodGet, call.Method)
		assert.Equal(t, "https://api.example.com/1.1/statuses/show.json", call.URL)
		assert.Equal(t, "20", call.Args.Query.Get("id"))
		assert.Empty(t, call.Args.Form)
		assert.False(t, call.SkipParams)
	})

	t.Run("POST parameters go to the form", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodPost, &MockTransport{}, &MockResolver{}, nil)

		call, err := invoker.Build(rest.Args{"status": "hi"}, rest.CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, "hi", call.Args.Form.Get("status"))
		assert.Empty(t, call.Args.Query)
	})

	t.Run("skip params is inferred and can be overridden", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodPost, &MockTransport{}, &MockResolver{skip: true}, nil)

		call, err := invoker.Build(nil, rest.CallOptions{})
		require.NoError(t, err)
		assert.True(t, call.SkipParams)

		call, err = invoker.Build(nil, rest.CallOptions{SkipParams: rest.Bool(false)})
		require.NoError(t, err)
		assert.False(t, call.SkipParams)
	})

	t.Run("suffix override", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodGet, &MockTransport{}, &MockResolver{}, nil)

		call, err := invoker.Build(nil, rest.CallOptions{Suffix: rest.String("")})
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/1.1/statuses/show", call.URL)
	})

	t.Run("headers are copied", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodGet, &MockTransport{}, &MockResolver{}, nil)
		headers := http.Header{"X-Test": []string{"1"}}

		call, err := invoker.Build(nil, rest.CallOptions{Headers: headers, JSON: true})
		require.NoError(t, err)

		call.Headers.Set("X-Test", "2")
		assert.Equal(t, "1", headers.Get("X-Test"))
		assert.True(t, call.JSON)
	})

	t.Run("no cache flag is copied", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodGet, &MockTransport{}, &MockResolver{}, nil)

		call, err := invoker.Build(nil, rest.CallOptions{NoCache: true})
		require.NoError(t, err)
		assert.True(t, call.NoCache)

		call, err = invoker.Build(nil, rest.CallOptions{})
		require.NoError(t, err)
		assert.False(t, call.NoCache)
	})

	t.Run("resolver errors are wrapped", func(t *testing.T) {
		t.Parallel()

		invoker := newTestInvoker(rest.MethodGet, &MockTransport{}, &MockResolver{err: errResolve}, nil)

		_, err := invoker.Build(nil, rest.CallOptions{})
		require.ErrorIs(t, err, errResolve)
		assert.Contains(t, err.Error(), "statuses/show.json")
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestRequestInvoker_Dispatch(t *testing.T) {
	t.Parallel()

	rateLimitedOnce := func() *MockTransport {
		transport := &MockTransport{}
		transport.handler = func(call *rest.Call) (*rest.Response, error) {
			if len(transport.Calls()) == 1 {
				return nil, &rest.RateLimitExceededError{URL: call.URL, ResetIn: time.Second}
			}

			return jsonResponse(call.URL, `{"id":1}`), nil
		}

		return transport
	}

	noSleep := rest.WithSleeper(func(context.Context, time.Duration) error { return nil })

	t.Run("sends one call", func(t *testing.T) {
		t.Parallel()

		transport := &MockTransport{}
		invoker := newTestInvoker(rest.MethodGet, transport, &MockResolver{}, nil)

		resp, err := invoker.Dispatch(context.Background(), rest.Args{"id": 1}, rest.CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, transport.Calls(), 1)
	})

	t.Run("error handler retries", func(t *testing.T) {
		t.Parallel()

		transport := rateLimitedOnce()
		invoker := newTestInvoker(rest.MethodGet, transport, &MockResolver{}, rest.DefaultErrorHandler(noSleep))

		resp, err := invoker.Dispatch(context.Background(), nil, rest.CallOptions{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":1}`, resp.String())
		assert.Len(t, transport.Calls(), 2)
	})

	t.Run("disabled error handling makes exactly one call", func(t *testing.T) {
		t.Parallel()

		transport := rateLimitedOnce()
		invoker := newTestInvoker(rest.MethodGet, transport, &MockResolver{}, rest.DefaultErrorHandler(noSleep))

		_, err := invoker.Dispatch(context.Background(), nil, rest.CallOptions{ErrorHandling: rest.Bool(false)})
		require.Error(t, err)
		assert.True(t, rest.IsRateLimited(err))
		assert.Len(t, transport.Calls(), 1)
	})

	t.Run("resolver failure makes no call", func(t *testing.T) {
		t.Parallel()

		transport := &MockTransport{}
		invoker := newTestInvoker(rest.MethodGet, transport, &MockResolver{err: errResolve}, rest.DefaultErrorHandler(noSleep))

		_, err := invoker.Dispatch(context.Background(), nil, rest.CallOptions{})
		require.ErrorIs(t, err, errResolve)
		assert.Empty(t, transport.Calls())
	})

	t.Run("concurrent dispatches share the invoker", func(t *testing.T) {
		t.Parallel()

		transport := &MockTransport{}
		invoker := newTestInvoker(rest.MethodGet, transport, &MockResolver{}, rest.DefaultErrorHandler(noSleep))

		errs := make(chan error, 10)
		for i := range 10 {
			go func() {
				_, err := invoker.Dispatch(context.Background(), rest.Args{"n": i}, rest.CallOptions{})
				errs <- err
			}()
		}

		for range 10 {
			require.NoError(t, <-errs)
		}

		assert.Len(t, transport.Calls(), 10)
	})
}

type mockStream struct{}

func (mockStream) Next(context.Context) (*rest.Response, error) { return nil, nil }
func (mockStream) Close() error                                 { return nil }

func TestRequestInvoker_Stream(t *testing.T) {
	t.Parallel()

	transport := &MockTransport{stream: mockStream{}}
	invoker := newTestInvoker(rest.MethodPost, transport, &MockResolver{}, nil)

	stream, err := invoker.Stream(context.Background(), rest.Args{"track": "go"}, rest.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, mockStream{}, stream)

	calls := transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "go", calls[0].Args.Form.Get("track"))
}

func TestRequestInvoker_Iterate(t *testing.T) {
	t.Parallel()

	transport := &MockTransport{handler: func(call *rest.Call) (*rest.Response, error) {
		return jsonResponse(call.URL, `{"ids":[1],"next_cursor":0}`), nil
	}}
	invoker := newTestInvoker(rest.MethodGet, transport, &MockResolver{}, nil)

	_, err := invoker.Iterate("page_number", nil)
	require.ErrorIs(t, err, rest.ErrUnknownStrategy)

	iterator, err := invoker.Iterate("with_cursor", nil)
	require.NoError(t, err)

	page, err := iterator.NextPage(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Items("ids"), 1)
	assert.True(t, iterator.Done())
}
