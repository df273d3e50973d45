package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrUnknownStrategy     = errors.New("unknown pagination strategy")
	ErrNoMorePages         = errors.New("no more pages")
	ErrUnsupportedParam    = errors.New("unsupported parameter type")
	ErrTransport           = errors.New("transport error")
	ErrDecode              = errors.New("could not decode response data")
	ErrConfigRequired      = errors.New("config is required")
	ErrResolverRequired    = errors.New("parameter resolver is required")
	ErrTransportRequired   = errors.New("transport is required")
	ErrBaseURLRequired     = errors.New("base URL is required")
	ErrStrategyNameInvalid = errors.New("strategy name is required")
)

// Error codes returned in the body of API errors.
const (
	ErrorCodeNotAuthenticated     = 32
	ErrorCodeDoesNotExist         = 34
	ErrorCodeAccountSuspended     = 64
	ErrorCodeRateLimitExceeded    = 88
	ErrorCodeInvalidToken         = 89
	ErrorCodeOverCapacity         = 130
	ErrorCodeInternalError        = 131
	ErrorCodeCouldNotAuthenticate = 135
	ErrorCodeBadAuthentication    = 215
)

// StatusEnhanceYourCalm is the legacy rate limit status used by streaming
// endpoints.
const StatusEnhanceYourCalm = 420

// UnsupportedMethodError is returned by ParseMethod.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported request method %q", e.Method)
}

// RateLimitExceededError reports that the remote rate limit was hit.
// ResetIn is how long until the limit resets.
type RateLimitExceededError struct {
	URL     string
	ResetIn time.Duration
	Err     error
}

// Error implements the error interface.
func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded on %s (resets in %s)", e.URL, e.ResetIn)
}

// Unwrap returns the underlying response error.
func (e *RateLimitExceededError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a single call timed out.
type TimeoutError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// APIError is one entry of an API error body.
type APIError struct {
	Code    int    `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// ResponseError is a non-2xx response.
type ResponseError struct {
	StatusCode int        `json:"-"`
	URL        string     `json:"-"`
	Errors     []APIError `json:"errors"`
	Body       []byte     `json:"-"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	prefix := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))

	switch len(e.Errors) {
	case 0:
		if len(e.Body) > 0 {
			return fmt.Sprintf("%s: %s", prefix, e.Body)
		}

		return prefix
	case 1:
		return fmt.Sprintf("%s: %s", prefix, e.Errors[0].Error())
	default:
		return fmt.Sprintf("%s: multiple errors: %v", prefix, e.Errors)
	}
}

// FirstError returns the first error or nil.
func (e *ResponseError) FirstError() *APIError {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// HasCode reports whether any entry carries code.
func (e *ResponseError) HasCode(code int) bool {
	for _, apiErr := range e.Errors {
		if apiErr.Code == code {
			return true
		}
	}

	return false
}

// ParseResponseError builds a ResponseError from a response body. Bodies
// that are not in the API error format are kept verbatim.
func ParseResponseError(statusCode int, url string, body []byte) *ResponseError {
	respErr := &ResponseError{
		StatusCode: statusCode,
		URL:        url,
		Body:       body,
	}

	var payload struct {
		Errors json.RawMessage `json:"errors"`
		Error  json.RawMessage `json:"error"`
	}

	if json.Unmarshal(body, &payload) != nil {
		return respErr
	}

	var entries []APIError
	if json.Unmarshal(payload.Errors, &entries) == nil {
		respErr.Errors = entries

		return respErr
	}

	var message string
	if json.Unmarshal(payload.Errors, &message) == nil || json.Unmarshal(payload.Error, &message) == nil {
		respErr.Errors = []APIError{{Message: message}}

		return respErr
	}

	var single APIError
	if json.Unmarshal(payload.Error, &single) == nil && single.Message != "" {
		respErr.Errors = []APIError{single}
	}

	return respErr
}

// IsRateLimited checks if the error is a rate limit error.
func IsRateLimited(err error) bool {
	rateErr := &RateLimitExceededError{}

	return errors.As(err, &rateErr)
}

// IsTimeout checks if the error is a call timeout.
func IsTimeout(err error) bool {
	timeoutErr := &TimeoutError{}

	return errors.As(err, &timeoutErr)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	respErr := &ResponseError{}
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound || respErr.HasCode(ErrorCodeDoesNotExist)
	}

	return false
}

// IsUnauthorized checks if the error is an authentication error.
func IsUnauthorized(err error) bool {
	respErr := &ResponseError{}
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusUnauthorized ||
			respErr.HasCode(ErrorCodeNotAuthenticated) ||
			respErr.HasCode(ErrorCodeInvalidToken) ||
			respErr.HasCode(ErrorCodeBadAuthentication)
	}

	return false
}
