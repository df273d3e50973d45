package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resthttp "github.com/fivetwenty-io/rest-dispatch/internal/http"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

func writeLines(w http.ResponseWriter, lines ...string) {
	flusher, _ := w.(http.Flusher)

	for _, line := range lines {
		_, _ = w.Write([]byte(line))
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func TestClient_OpenStream(t *testing.T) { //nolint:funlen
	t.Parallel()

	t.Run("yields one message per line", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "nasa", r.URL.Query().Get("track"))
			writeLines(w, `{"id":1}`+"\n", "\r\n", "\n", `{"id":2}`+"\r\n")
		}))
		defer server.Close()

		call := &rest.Call{
			Method: rest.MethodGet,
			URL:    server.URL + "/1.1/statuses/filter.json?track=nasa",
		}

		stream, err := resthttp.NewClient().OpenStream(context.Background(), call)
		require.NoError(t, err)
		defer stream.Close()

		first, err := stream.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.Get("id").Int())

		second, err := stream.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.Get("id").Int())

		_, err = stream.Next(context.Background())
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("idle timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeLines(w, `{"id":1}`+"\n")
			<-r.Context().Done()
		}))
		defer server.Close()

		client := resthttp.NewClient(resthttp.WithStreamIdleTimeout(50 * time.Millisecond))

		stream, err := client.OpenStream(context.Background(), getCall(server.URL))
		require.NoError(t, err)
		defer stream.Close()

		_, err = stream.Next(context.Background())
		require.NoError(t, err)

		_, err = stream.Next(context.Background())
		require.Error(t, err)
		assert.True(t, rest.IsTimeout(err))
	})

	t.Run("keep-alive resets idle timer", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeLines(w, "\n")

			for range 5 {
				time.Sleep(50 * time.Millisecond)
				writeLines(w, "\r\n")
			}

			writeLines(w, `{"id":3}`+"\n")
		}))
		defer server.Close()

		client := resthttp.NewClient(resthttp.WithStreamIdleTimeout(150 * time.Millisecond))

		stream, err := client.OpenStream(context.Background(), getCall(server.URL))
		require.NoError(t, err)
		defer stream.Close()

		msg, err := stream.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), msg.Get("id").Int())
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeLines(w, "\n")
			<-r.Context().Done()
		}))
		defer server.Close()

		stream, err := resthttp.NewClient().OpenStream(context.Background(), getCall(server.URL))
		require.NoError(t, err)
		defer stream.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = stream.Next(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("closed stream", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeLines(w, "\n")
			<-r.Context().Done()
		}))
		defer server.Close()

		stream, err := resthttp.NewClient().OpenStream(context.Background(), getCall(server.URL))
		require.NoError(t, err)

		require.NoError(t, stream.Close())
		require.NoError(t, stream.Close())

		_, err = stream.Next(context.Background())
		require.ErrorIs(t, err, resthttp.ErrStreamClosed)
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"code":32,"message":"Could not authenticate you."}]}`))
		}))
		defer server.Close()

		_, err := resthttp.NewClient().OpenStream(context.Background(), getCall(server.URL))
		require.Error(t, err)
		assert.True(t, rest.IsUnauthorized(err))
	})
}
