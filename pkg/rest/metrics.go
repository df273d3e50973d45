package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rest_dispatch"

// PrometheusMetrics exports call and retry metrics. Request metrics are fed
// by the interceptors it returns; retries arrive through ObserveRetry.
type PrometheusMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	retryWait prometheus.Counter
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier client are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	metrics := &PrometheusMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP attempts",
			},
			[]string{"method", "host", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP attempt duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "host"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total number of retried calls by reason",
			},
			[]string{"reason"},
		),
		retryWait: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "retry",
				Name:      "sleep_seconds_total",
				Help:      "Total time spent sleeping before retries",
			},
		),
	}

	var err error

	metrics.requests, err = register(reg, metrics.requests)
	if err != nil {
		return nil, err
	}

	metrics.duration, err = register(reg, metrics.duration)
	if err != nil {
		return nil, err
	}

	metrics.retries, err = register(reg, metrics.retries)
	if err != nil {
		return nil, err
	}

	metrics.retryWait, err = register(reg, metrics.retryWait)
	if err != nil {
		return nil, err
	}

	return metrics, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	alreadyRegistered := prometheus.AlreadyRegisteredError{}
	if errors.As(err, &alreadyRegistered) {
		if existing, ok := alreadyRegistered.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return collector, fmt.Errorf("registering metrics: %w", err)
}

// ObserveRetry implements RetryObserver.
func (m *PrometheusMetrics) ObserveRetry(reason RetryReason, _ string, delay time.Duration) {
	m.retries.WithLabelValues(string(reason)).Inc()
	m.retryWait.Add(delay.Seconds())
}

// RequestInterceptor stamps the attempt start time.
func (m *PrometheusMetrics) RequestInterceptor() RequestInterceptor {
	return MetricsRequestInterceptor()
}

// ResponseInterceptor counts the attempt and observes its duration.
func (m *PrometheusMetrics) ResponseInterceptor() ResponseInterceptor {
	return func(_ context.Context, call *Call, resp *Response, callErr error) error {
		method := string(call.Method)
		host := callHost(call.URL)

		status := "error"
		if resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		} else if callErr == nil {
			status = strconv.Itoa(http.StatusOK)
		}

		m.requests.WithLabelValues(method, host, status).Inc()
		m.duration.WithLabelValues(method, host).Observe(callLatency(call).Seconds())

		return nil
	}
}

func callHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}

	return parsed.Host
}
