// Package metrics provides Prometheus metrics for license service calls.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "license_client"

// Request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
	OutcomeAuthError = "auth_error"
)

// ClientMetrics holds the collectors for the license client. A nil *ClientMetrics
// records nothing.
type ClientMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	TokenFetches    *prometheus.CounterVec
}

// NewClientMetrics creates the collectors and registers them with reg.
func NewClientMetrics(reg prometheus.Registerer) (*ClientMetrics, error) {
	m := &ClientMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "License service requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "License service request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		TokenFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_fetches_total",
			Help:      "Bearer token acquisitions by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.Requests, m.RequestDuration, m.CacheLookups, m.TokenFetches} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// RecordRequest counts a finished request and observes its latency.
func (m *ClientMetrics) RecordRequest(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func (m *ClientMetrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordTokenFetch counts a token acquisition attempt.
func (m *ClientMetrics) RecordTokenFetch(outcome string) {
	if m == nil {
		return
	}
	m.TokenFetches.WithLabelValues(outcome).Inc()
}
