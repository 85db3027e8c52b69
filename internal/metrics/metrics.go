// Package metrics provides Prometheus metrics for the chat service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ragchat"

// Metrics holds all Prometheus metrics for the service. Each instance owns
// its registry so tests can build as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	// Upload metrics
	UploadsTotal      *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	ChunksStoredTotal prometheus.Counter
	ReplacementsTotal prometheus.Counter

	// Stream metrics
	StreamsInFlight prometheus.Gauge
	StreamsTotal    *prometheus.CounterVec
	StreamDuration  prometheus.Histogram

	// Retrieval metrics
	RetrievalCacheTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "PDF uploads by result",
		}, []string{"result"}),
		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time spent replacing and storing a document",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		ChunksStoredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Knowledge chunks written",
		}),
		ReplacementsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_replacements_total",
			Help:      "Uploads that replaced a document with the same name",
		}),

		StreamsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_streams_in_flight",
			Help:      "Chat streams currently open",
		}),
		StreamsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_streams_total",
			Help:      "Finished chat streams by outcome",
		}, []string{"outcome"}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_stream_duration_seconds",
			Help:      "Lifetime of chat streams",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		RetrievalCacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_total",
			Help:      "Retrieval cache lookups by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordUpload counts an upload outcome ("ok", "rejected", "failed").
func (m *Metrics) RecordUpload(result string) {
	m.UploadsTotal.WithLabelValues(result).Inc()
}

// RecordIngest records a completed ingestion.
func (m *Metrics) RecordIngest(chunks int, replaced bool, d time.Duration) {
	m.IngestDuration.Observe(d.Seconds())
	m.ChunksStoredTotal.Add(float64(chunks))
	if replaced {
		m.ReplacementsTotal.Inc()
	}
}

// StreamStarted marks a stream as open and returns a func that records its
// outcome when it ends.
func (m *Metrics) StreamStarted() func(outcome string) {
	start := time.Now()
	m.StreamsInFlight.Inc()
	return func(outcome string) {
		m.StreamsInFlight.Dec()
		m.StreamsTotal.WithLabelValues(outcome).Inc()
		m.StreamDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordCacheLookup counts a retrieval cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RetrievalCacheTotal.WithLabelValues(result).Inc()
}
