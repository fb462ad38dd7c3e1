// Package metrics exposes scan and tool counters for Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raysh454/sift/internal/model"
)

// Metrics owns a private registry so tests and embedders never collide with
// the global default.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal     *prometheus.CounterVec
	rejectedTotal  *prometheus.CounterVec
	toolsTotal     *prometheus.CounterVec
	creditsSpent   prometheus.Counter
	toolDuration   *prometheus.HistogramVec
	scanDuration   prometheus.Histogram
	eventsEmitted  prometheus.Counter
	persistFailure prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_scans_total",
				Help: "Scans that passed admission, by run status",
			},
			[]string{"status"},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_scans_rejected_total",
				Help: "Scans rejected before any tool ran, by reason",
			},
			[]string{"reason"},
		),
		toolsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sift_tool_invocations_total",
				Help: "Tool invocations by tool and terminal status",
			},
			[]string{"tool", "status"},
		),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_credits_spent_total",
			Help: "Credits debited for admitted scans",
		}),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sift_tool_duration_seconds",
				Help:    "Time spent per tool invocation",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"tool"},
		),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_scan_duration_seconds",
			Help:    "Wall time of a whole multi-tool scan",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		eventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_progress_events_total",
			Help: "Progress events handed to the broadcaster",
		}),
		persistFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_persist_failures_total",
			Help: "Scans whose run record could not be persisted after billing",
		}),
	}
	m.registry.MustRegister(
		m.scansTotal, m.rejectedTotal, m.toolsTotal, m.creditsSpent,
		m.toolDuration, m.scanDuration, m.eventsEmitted, m.persistFailure,
	)
	return m
}

func (m *Metrics) ScanFinished(status model.RunStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(string(status)).Inc()
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) ScanRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ToolFinished(tool string, status model.ToolStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.toolsTotal.WithLabelValues(tool, string(status)).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) CreditsSpent(n int) {
	if m == nil {
		return
	}
	m.creditsSpent.Add(float64(n))
}

func (m *Metrics) EventEmitted() {
	if m == nil {
		return
	}
	m.eventsEmitted.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailure.Inc()
}

// Registry returns the underlying registry for custom collectors or tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
