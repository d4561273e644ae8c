// Package metrics provides Prometheus metrics for the image resolution pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for cache, governor, queue, and provider
// activity. All Record methods are safe on a nil receiver so components can
// run without metrics in tests and in the CLI.
type Metrics struct {
	providerRequestsTotal *prometheus.CounterVec
	providerDuration      *prometheus.HistogramVec
	cacheLookupsTotal     *prometheus.CounterVec
	governorDecisions     *prometheus.CounterVec
	queueWait             prometheus.Histogram
	queueDepth            prometheus.Gauge
	resolutionsTotal      *prometheus.CounterVec
	llmRequestsTotal      *prometheus.CounterVec
}

// New creates pipeline metrics and registers them on registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_provider_requests_total",
			Help: "Total number of image provider calls by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: ok, quota_exceeded, no_results, transport, config_missing
	)

	m.providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "image_provider_request_duration_seconds",
			Help: "Time taken by image provider calls",
			// 50ms to ~25s
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider"},
	)

	m.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_cache_lookups_total",
			Help: "Total number of cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // result: hit, miss
	)

	m.governorDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_governor_decisions_total",
			Help: "Total number of rate governor decisions",
		},
		[]string{"decision"}, // decision: permit, deny
	)

	m.queueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_queue_wait_seconds",
			Help:    "Time tasks spend queued before dispatch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_queue_pending",
			Help: "Number of tasks waiting for dispatch",
		},
	)

	m.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_resolutions_total",
			Help: "Total number of resolve calls by where the first image came from",
		},
		[]string{"source"}, // source: cache, primary, secondary, fallback
	)

	m.llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of chat completion calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.providerRequestsTotal.Describe(ch)
	m.providerDuration.Describe(ch)
	m.cacheLookupsTotal.Describe(ch)
	m.governorDecisions.Describe(ch)
	m.queueWait.Describe(ch)
	m.queueDepth.Describe(ch)
	m.resolutionsTotal.Describe(ch)
	m.llmRequestsTotal.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.providerRequestsTotal.Collect(ch)
	m.providerDuration.Collect(ch)
	m.cacheLookupsTotal.Collect(ch)
	m.governorDecisions.Collect(ch)
	m.queueWait.Collect(ch)
	m.queueDepth.Collect(ch)
	m.resolutionsTotal.Collect(ch)
	m.llmRequestsTotal.Collect(ch)
}

// RecordProviderRequest records one provider call and its duration in seconds
func (m *Metrics) RecordProviderRequest(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordCacheLookup records a hit or miss on the named cache
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordGovernorDecision records a permit or deny
func (m *Metrics) RecordGovernorDecision(permitted bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if permitted {
		decision = "permit"
	}
	m.governorDecisions.WithLabelValues(decision).Inc()
}

// RecordQueueWait records how long a task waited before dispatch
func (m *Metrics) RecordQueueWait(seconds float64) {
	if m == nil {
		return
	}
	m.queueWait.Observe(seconds)
}

// SetQueueDepth sets the number of tasks waiting for dispatch
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// RecordResolution records the provenance of a resolve call
func (m *Metrics) RecordResolution(source string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(source).Inc()
}

// RecordLLMRequest records a chat completion call
func (m *Metrics) RecordLLMRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
}
