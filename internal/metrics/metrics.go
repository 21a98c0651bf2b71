// Package metrics exposes Prometheus instrumentation for the subtitle flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxsrt"

// Outcomes recorded on the uploads counter.
const (
	OutcomeTranscribed = "transcribed"
	OutcomeCached      = "cached"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
)

// Metrics owns a private registry so several servers (or tests) can coexist in
// one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Uploads               *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	SegmentsPerDocument   prometheus.Histogram
	Sessions              prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Audio uploads by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Wall time spent in the transcription engine",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		SegmentsPerDocument: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segments_per_document",
			Help:      "Number of subtitle blocks in generated documents",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Browser sessions currently holding a cache",
		}),
	}
}

func (m *Metrics) CountUpload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTranscription(elapsed time.Duration, segments int) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.Observe(elapsed.Seconds())
	m.SegmentsPerDocument.Observe(float64(segments))
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
