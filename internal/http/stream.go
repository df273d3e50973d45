package http

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// Static errors for err113 compliance.
var (
	ErrStreamClosed = errors.New("stream closed")
)

// OpenStream implements rest.Transport. The connection has no overall
// timeout; instead every Next call fails with rest.TimeoutError when no line
// (keep-alive newlines included) arrives within the idle timeout.
func (c *Client) OpenStream(ctx context.Context, call *rest.Call) (rest.ResponseStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, streamCtx, call)
	if err != nil {
		cancel()

		return nil, err
	}

	httpResp, err := c.httpClient.HTTPClient.Do(req.Request)
	if err != nil {
		cancel()

		return nil, classifyTransportError(ctx, call, err)
	}

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		defer cancel()
		defer httpResp.Body.Close()

		body, _ := io.ReadAll(httpResp.Body)
		resp := &rest.Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, URL: call.URL, Body: body}

		return nil, classifyResponse(resp, call, c.now())
	}

	c.logger.Debug("Stream opened", map[string]interface{}{
		"url": call.URL,
	})

	stream := &lineStream{
		url:    call.URL,
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   httpResp.Body,
		cancel: cancel,
		idle:   c.streamIdle,
		lines:  make(chan []byte),
		done:   make(chan struct{}),
	}

	go stream.read()

	return stream, nil
}

// lineStream yields one Response per non-blank line of newline-delimited
// JSON. A single goroutine reads the body; Next receives its lines.
type lineStream struct {
	url    string
	status int
	header http.Header
	body   io.ReadCloser
	cancel context.CancelFunc
	idle   time.Duration

	lines chan []byte
	done  chan struct{}

	mu      sync.Mutex
	readErr error
	closed  bool
}

func (s *lineStream) read() {
	defer close(s.lines)

	reader := bufio.NewReader(s.body)

	for {
		line, err := reader.ReadBytes('\n')

		if len(line) > 0 {
			select {
			case s.lines <- line:
			case <-s.done:
				return
			}
		}

		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()

			return
		}
	}
}

// Next returns the next message. Keep-alive blank lines reset the idle
// timer but are not returned. io.EOF marks the end of the stream.
func (s *lineStream) Next(ctx context.Context) (*rest.Response, error) {
	timer := time.NewTimer(s.idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			return nil, &rest.TimeoutError{URL: s.url, Err: fmt.Errorf("no data for %s", s.idle)}

		case line, ok := <-s.lines:
			if !ok {
				return nil, s.endErr()
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				timer.Reset(s.idle)

				continue
			}

			return &rest.Response{
				StatusCode: s.status,
				Header:     s.header,
				URL:        s.url,
				Body:       line,
			}, nil
		}
	}
}

func (s *lineStream) endErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}

	if s.readErr == nil || errors.Is(s.readErr, io.EOF) {
		return io.EOF
	}

	return fmt.Errorf("%w: reading stream %s: %w", rest.ErrTransport, s.url, s.readErr)
}

// Close ends the stream and releases the connection.
func (s *lineStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.cancel()

	err := s.body.Close()
	if err != nil {
		return fmt.Errorf("closing stream %s: %w", s.url, err)
	}

	return nil
}
