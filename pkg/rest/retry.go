package rest

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryReason labels why a call was retried.
type RetryReason string

const (
	RetryReasonRateLimit RetryReason = "rate_limit"
	RetryReasonTimeout   RetryReason = "timeout"
)

// RetryObserver is notified before every retry.
type RetryObserver interface {
	ObserveRetry(reason RetryReason, url string, delay time.Duration)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitDelay is the wait applied after a rate limit error: the reset
// delay rounded up to whole seconds, plus one second.
func RateLimitDelay(resetIn time.Duration) time.Duration {
	seconds := math.Ceil(resetIn.Seconds())
	if seconds < 0 {
		seconds = 0
	}

	return time.Duration(seconds)*time.Second + time.Second
}

// RetryingInvoker retries a base Invoker on rate limit and timeout errors,
// without bound. Every other error is returned as is. It keeps no state
// between calls and is safe for concurrent use.
type RetryingInvoker struct {
	base     Invoker
	logger   Logger
	sleep    Sleeper
	observer RetryObserver
}

// RetryOption configures a RetryingInvoker.
type RetryOption func(*RetryingInvoker)

// WithRetryLogger sets the logger.
func WithRetryLogger(logger Logger) RetryOption {
	return func(r *RetryingInvoker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSleeper replaces the sleep function.
func WithSleeper(sleep Sleeper) RetryOption {
	return func(r *RetryingInvoker) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRetryObserver registers an observer.
func WithRetryObserver(observer RetryObserver) RetryOption {
	return func(r *RetryingInvoker) {
		r.observer = observer
	}
}

// NewRetryingInvoker wraps base.
func NewRetryingInvoker(base Invoker, opts ...RetryOption) *RetryingInvoker {
	retrying := &RetryingInvoker{
		base:   base,
		logger: NopLogger{},
		sleep:  ContextSleep,
	}

	for _, opt := range opts {
		opt(retrying)
	}

	return retrying
}

// Dispatch implements Invoker.
func (r *RetryingInvoker) Dispatch(ctx context.Context, args Args, opts CallOptions) (*Response, error) {
	for {
		resp, err := r.base.Dispatch(ctx, args, opts)
		if err == nil {
			return resp, nil
		}

		rateErr := &RateLimitExceededError{}
		timeoutErr := &TimeoutError{}

		switch {
		case errors.As(err, &rateErr):
			delay := RateLimitDelay(rateErr.ResetIn)
			r.logger.Warn("Rate limit exceeded, sleeping", map[string]interface{}{
				"url":   rateErr.URL,
				"delay": delay.String(),
			})
			r.notify(RetryReasonRateLimit, rateErr.URL, delay)

			sleepErr := r.sleep(ctx, delay)
			if sleepErr != nil {
				return nil, sleepErr
			}
		case errors.As(err, &timeoutErr):
			r.logger.Info("Request timed out, retrying", map[string]interface{}{
				"url": timeoutErr.URL,
			})
			r.notify(RetryReasonTimeout, timeoutErr.URL, 0)

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		default:
			return resp, err
		}
	}
}

func (r *RetryingInvoker) notify(reason RetryReason, url string, delay time.Duration) {
	if r.observer != nil {
		r.observer.ObserveRetry(reason, url, delay)
	}
}

// DefaultErrorHandler returns the ErrorHandler used by restclient: every
// wrapped Invoker becomes a RetryingInvoker with the given options.
func DefaultErrorHandler(opts ...RetryOption) ErrorHandler {
	return func(base Invoker) Invoker {
		return NewRetryingInvoker(base, opts...)
	}
}
