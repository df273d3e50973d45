package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fivetwenty-io/rest-dispatch/internal/constants"
	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// classifyTransportError maps a failed exchange onto the rest error
// taxonomy. ctx is the caller's context: when it is done the failure is the
// caller's cancellation, not a timeout, and must not be retried.
func classifyTransportError(ctx context.Context, call *rest.Call, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s %s: %w", call.Method, call.URL, ctx.Err())
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &rest.TimeoutError{URL: call.URL, Err: err}
	}

	return fmt.Errorf("%w: %s %s: %w", rest.ErrTransport, call.Method, call.URL, err)
}

// classifyResponse returns the error carried by resp, if any.
func classifyResponse(resp *rest.Response, call *rest.Call, now time.Time) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if call.JSON && !json.Valid(resp.Body) {
			return fmt.Errorf("%w from %s", rest.ErrDecode, call.URL)
		}

		return nil
	}

	respErr := rest.ParseResponseError(resp.StatusCode, call.URL, resp.Body)

	if isRateLimited(resp.StatusCode, respErr) {
		return &rest.RateLimitExceededError{
			URL:     call.URL,
			ResetIn: resetIn(resp.Header, now),
			Err:     respErr,
		}
	}

	return respErr
}

func isRateLimited(status int, respErr *rest.ResponseError) bool {
	return status == http.StatusTooManyRequests ||
		status == rest.StatusEnhanceYourCalm ||
		respErr.HasCode(rest.ErrorCodeRateLimitExceeded)
}

// resetIn reads the rate limit reset delay from X-Rate-Limit-Reset (epoch
// seconds) or Retry-After (seconds). Without either header the default
// window wait applies.
func resetIn(header http.Header, now time.Time) time.Duration {
	if value := header.Get(constants.HeaderRateLimitReset); value != "" {
		epoch, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return max(time.Unix(epoch, 0).Sub(now), 0)
		}
	}

	if value := header.Get(constants.HeaderRetryAfter); value != "" {
		seconds, err := strconv.Atoi(value)
		if err == nil {
			return time.Duration(max(seconds, 0)) * time.Second
		}
	}

	return constants.DefaultRateLimitWait
}
