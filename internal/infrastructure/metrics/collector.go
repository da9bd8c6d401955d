// Package metrics exposes the Prometheus instruments of the retriever service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector owns a private registry so that several collectors can coexist in tests.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	llmCallsTotal   *prometheus.CounterVec
	communities     prometheus.Histogram
}

// NewCollector creates the collector and registers its instruments.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "Latency of one retrieval invocation in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		llmCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Total number of LLM chat calls",
			},
			[]string{"client", "status"},
		),
		communities: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "communities_per_query",
				Help:      "Number of community summaries answered per query",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
	}
}

// ObserveRetrieval records one latency sample.
func (c *Collector) ObserveRetrieval(d time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	c.requestDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordLLMCall counts one chat call made through the named client.
func (c *Collector) RecordLLMCall(client string, err error) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeError
	}
	c.llmCallsTotal.WithLabelValues(client, status).Inc()
}

// ObserveCommunities records how many communities a query fanned out to.
func (c *Collector) ObserveCommunities(n int) {
	c.communities.Observe(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
