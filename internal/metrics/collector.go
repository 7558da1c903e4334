// Package metrics counts what the answer pipeline does: stream outcomes,
// throttled flushes, renderer fallbacks and harvested citations.
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Stream outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Citation origins.
const (
	OriginMetadata = "metadata"
	OriginHeader   = "header"
	OriginFooter   = "footer"
)

// Collector owns a private registry so tests and embedders never collide
// with the global one.
type Collector struct {
	registry *prometheus.Registry

	streamsTotal    *prometheus.CounterVec
	streamBytes     prometheus.Counter
	streamFlushes   prometheus.Counter
	streamDuration  prometheus.Histogram
	renderFallbacks prometheus.Counter
	citationsTotal  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers every metric under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.streamsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Answer streams by terminal outcome",
		},
		[]string{"outcome"},
	)

	c.streamBytes = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Raw bytes read from answer streams",
		},
	)

	c.streamFlushes = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_flushes_total",
			Help:      "Snapshots published by the throttled buffer",
		},
	)

	c.streamDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from first read to terminal outcome",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	c.renderFallbacks = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_fallbacks_total",
			Help:      "Renders that fell back to the line renderer",
		},
	)

	c.citationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_total",
			Help:      "Citations added to answer footers by origin",
		},
		[]string{"origin"},
	)

	return c
}

// StreamFinished records a terminal outcome and its duration.
func (c *Collector) StreamFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.streamsTotal.WithLabelValues(outcome).Inc()
	c.streamDuration.Observe(d.Seconds())
	c.logger.Debug("stream finished",
		zap.String("outcome", outcome),
		zap.Duration("duration", d),
	)
}

func (c *Collector) StreamBytes(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.streamBytes.Add(float64(n))
}

func (c *Collector) Flushed() {
	if c == nil {
		return
	}
	c.streamFlushes.Inc()
}

func (c *Collector) RenderFallback() {
	if c == nil {
		return
	}
	c.renderFallbacks.Inc()
}

// Citations adds n citations of the given origin.
func (c *Collector) Citations(origin string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.citationsTotal.WithLabelValues(origin).Add(float64(n))
}

// Registry exposes the private registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
