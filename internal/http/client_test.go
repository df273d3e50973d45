package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resthttp "github.com/fivetwenty-io/rest-dispatch/internal/http"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

type staticSigner struct {
	value string
}

func (s staticSigner) Sign(req *http.Request, _ *rest.Call) error {
	req.Header.Set("Authorization", s.value)

	return nil
}

func getCall(rawURL string) *rest.Call {
	return &rest.Call{Method: rest.MethodGet, URL: rawURL}
}

func TestClient_Call(t *testing.T) { //nolint:funlen
	t.Parallel()

	t.Run("sends query and headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/1.1/statuses/show.json", r.URL.Path)
			assert.Equal(t, "20", r.URL.Query().Get("id"))
			assert.Equal(t, "extended", r.URL.Query().Get("tweet_mode"))
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.Equal(t, "global", r.Header.Get("X-Global"))
			assert.Equal(t, "call", r.Header.Get("X-Call"))
			assert.Equal(t, "Signed", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":20}`))
		}))
		defer server.Close()

		client := resthttp.NewClient(
			resthttp.WithUserAgent("test-agent"),
			resthttp.WithHeaders(map[string]string{"X-Global": "global"}),
			resthttp.WithSigner(staticSigner{value: "Signed"}),
		)

		call := &rest.Call{
			Method: rest.MethodGet,
			URL:    server.URL + "/1.1/statuses/show.json?tweet_mode=extended",
			Args:   rest.WireArgs{Query: url.Values{"id": {"20"}}},
			Headers: http.Header{
				"X-Call":        {"call"},
				"Authorization": {"ignored"},
			},
			JSON: true,
		}

		resp, err := client.Call(context.Background(), call)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(20), resp.Get("id").Int())
		assert.Equal(t, call.URL, resp.URL)
	})

	t.Run("encodes form body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "hello world", r.PostForm.Get("status"))
			assert.Empty(t, r.URL.RawQuery)

			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		call := &rest.Call{
			Method: rest.MethodPost,
			URL:    server.URL + "/statuses/update.json",
			Args:   rest.WireArgs{Form: url.Values{"status": {"hello world"}}},
		}

		_, err := resthttp.NewClient().Call(context.Background(), call)
		require.NoError(t, err)
	})

	t.Run("uploads files as multipart", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "caption", r.FormValue("status"))

			file, header, err := r.FormFile("media")
			if assert.NoError(t, err) {
				defer file.Close()

				data, _ := io.ReadAll(file)
				assert.Equal(t, "image-bytes", string(data))
				assert.Equal(t, "media", header.Filename)
			}

			_, _ = w.Write([]byte(`{"media_id":1}`))
		}))
		defer server.Close()

		call := &rest.Call{
			Method:     rest.MethodPost,
			URL:        server.URL + "/media/upload.json",
			SkipParams: true,
			Args: rest.WireArgs{
				Form:  url.Values{"status": {"caption"}},
				Files: map[string]io.Reader{"media": strings.NewReader("image-bytes")},
			},
		}

		_, err := resthttp.NewClient().Call(context.Background(), call)
		require.NoError(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer server.Close()

		call := getCall(server.URL)
		call.JSON = true

		_, err := resthttp.NewClient().Call(context.Background(), call)
		require.ErrorIs(t, err, rest.ErrDecode)

		call.JSON = false

		resp, err := resthttp.NewClient().Call(context.Background(), call)
		require.NoError(t, err)
		assert.Equal(t, "<html>", resp.String())
	})
}

func TestClient_Call_Errors(t *testing.T) { //nolint:funlen
	t.Parallel()

	now := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		status    int
		header    map[string]string
		body      string
		rateLimit bool
		resetIn   time.Duration
		notFound  bool
	}{
		{
			name:      "429 with reset header",
			status:    http.StatusTooManyRequests,
			header:    map[string]string{"X-Rate-Limit-Reset": strconv.FormatInt(now.Unix()+15, 10)},
			rateLimit: true,
			resetIn:   15 * time.Second,
		},
		{
			name:      "reset in the past",
			status:    http.StatusTooManyRequests,
			header:    map[string]string{"X-Rate-Limit-Reset": strconv.FormatInt(now.Unix()-5, 10)},
			rateLimit: true,
		},
		{
			name:      "420 with retry after",
			status:    rest.StatusEnhanceYourCalm,
			header:    map[string]string{"Retry-After": "7"},
			rateLimit: true,
			resetIn:   7 * time.Second,
		},
		{
			name:      "error code 88",
			status:    http.StatusBadRequest,
			body:      `{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`,
			rateLimit: true,
			resetIn:   time.Minute,
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"errors":[{"code":34,"message":"Sorry, that page does not exist."}]}`,
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for key, value := range tt.header {
					w.Header().Set(key, value)
				}

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := resthttp.NewClient(resthttp.WithClock(func() time.Time { return now }))

			resp, err := client.Call(context.Background(), getCall(server.URL))
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)

			assert.Equal(t, tt.rateLimit, rest.IsRateLimited(err))
			assert.Equal(t, tt.notFound, rest.IsNotFound(err))

			if tt.rateLimit {
				var rateErr *rest.RateLimitExceededError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, tt.resetIn, rateErr.ResetIn)
			}

			var respErr *rest.ResponseError
			require.ErrorAs(t, err, &respErr)
			assert.Equal(t, tt.status, respErr.StatusCode)
		})
	}
}

func TestClient_Call_Timeouts(t *testing.T) {
	t.Parallel()

	slow := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}

	t.Run("call timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(slow))
		defer server.Close()

		client := resthttp.NewClient(resthttp.WithTimeout(50 * time.Millisecond))

		_, err := client.Call(context.Background(), getCall(server.URL))
		require.Error(t, err)
		assert.True(t, rest.IsTimeout(err))
	})

	t.Run("caller cancellation is not a timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(slow))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := resthttp.NewClient().Call(ctx, getCall(server.URL))
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, rest.IsTimeout(err))
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(slow))
		target := server.URL
		server.Close()

		_, err := resthttp.NewClient().Call(context.Background(), getCall(target))
		require.ErrorIs(t, err, rest.ErrTransport)
	})
}

func TestClient_Call_TransportRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		retryMax int
		expected int32
	}{
		{"5xx without retries", http.StatusServiceUnavailable, 0, 1},
		{"5xx with retries", http.StatusServiceUnavailable, 2, 3},
		{"429 is never retried here", http.StatusTooManyRequests, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := resthttp.NewClient(resthttp.WithRetryConfig(tt.retryMax, time.Millisecond, 5*time.Millisecond))

			_, err := client.Call(context.Background(), getCall(server.URL))

			var respErr *rest.ResponseError
			require.ErrorAs(t, err, &respErr)
			assert.Equal(t, tt.status, respErr.StatusCode)
			assert.Equal(t, tt.expected, atomic.LoadInt32(&hits))
		})
	}
}

func TestClient_Call_Cache(t *testing.T) {
	t.Parallel()

	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"n":` + r.URL.Query().Get("n") + `}`))
	}))
	defer server.Close()

	cache := rest.NewResponseCache(rest.NewMemoryCache(10), nil)
	client := resthttp.NewClient(resthttp.WithCache(cache))

	call := func(n string) *rest.Response {
		resp, err := client.Call(context.Background(), &rest.Call{
			Method: rest.MethodGet,
			URL:    server.URL,
			Args:   rest.WireArgs{Query: url.Values{"n": {n}}},
		})
		require.NoError(t, err)

		return resp
	}

	assert.Equal(t, int64(1), call("1").Get("n").Int())
	assert.Equal(t, int64(1), call("1").Get("n").Int())
	assert.Equal(t, int64(2), call("2").Get("n").Int())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, rest.CacheStats{Hits: 1, Misses: 2, Sets: 2}, cache.Stats())
}

func TestClient_Call_Interceptors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Intercepted"))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var seen error

	chain := rest.NewInterceptorChain()
	chain.AddRequestInterceptor(rest.HeaderInterceptor(map[string]string{"X-Intercepted": "yes"}))
	chain.AddResponseInterceptor(func(_ context.Context, _ *rest.Call, _ *rest.Response, err error) error {
		seen = err

		return nil
	})

	_, err := resthttp.NewClient(resthttp.WithInterceptors(chain)).Call(context.Background(), getCall(server.URL))
	require.Error(t, err)
	assert.Equal(t, err, seen)
}
