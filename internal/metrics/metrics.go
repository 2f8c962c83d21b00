// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "speakloop"

// Recorder is what the service and scheduler report to.
type Recorder interface {
	RecordSessionStarted(mode, outcome string)
	RecordTap(accepted bool)
	RecordCapWarning()
	RecordFlush(ok bool, d time.Duration)
	RecordRollover()
	RecordTimezoneFallback()
	SetOpenSessions(n int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	sessions         *prometheus.CounterVec
	taps             *prometheus.CounterVec
	capWarnings      prometheus.Counter
	flushes          *prometheus.CounterVec
	flushLatency     prometheus.Histogram
	rollovers        prometheus.Counter
	timezoneFallback prometheus.Counter
	openSessions     prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Session selections by mode and outcome.",
		}, []string{"mode", "outcome"}),
		taps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taps_total",
			Help:      "Repetition taps, split by whether the daily cap accepted them.",
		}, []string{"accepted"}),
		capWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cap_warnings_total",
			Help:      "Daily cap warnings shown.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Counter flushes to the repository by result.",
		}, []string{"result"}),
		flushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_latency_seconds",
			Help:      "Time spent writing one pending delta.",
			Buckets:   prometheus.DefBuckets,
		}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollovers_total",
			Help:      "Local-day rollovers detected in open sessions.",
		}),
		timezoneFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timezone_fallbacks_total",
			Help:      "User timezones that failed validation and fell back to UTC.",
		}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}

	reg.MustRegister(
		c.sessions,
		c.taps,
		c.capWarnings,
		c.flushes,
		c.flushLatency,
		c.rollovers,
		c.timezoneFallback,
		c.openSessions,
	)

	return c
}

func (c *Collector) RecordSessionStarted(mode, outcome string) {
	c.sessions.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) RecordTap(accepted bool) {
	c.taps.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func (c *Collector) RecordCapWarning() {
	c.capWarnings.Inc()
}

func (c *Collector) RecordFlush(ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.flushes.WithLabelValues(result).Inc()
	c.flushLatency.Observe(d.Seconds())
}

func (c *Collector) RecordRollover() {
	c.rollovers.Inc()
}

func (c *Collector) RecordTimezoneFallback() {
	c.timezoneFallback.Inc()
}

func (c *Collector) SetOpenSessions(n int) {
	c.openSessions.Set(float64(n))
}

// Nop discards everything. Used when metrics are disabled.
type Nop struct{}

func (Nop) RecordSessionStarted(string, string) {}
func (Nop) RecordTap(bool)                      {}
func (Nop) RecordCapWarning()                   {}
func (Nop) RecordFlush(bool, time.Duration)     {}
func (Nop) RecordRollover()                     {}
func (Nop) RecordTimezoneFallback()             {}
func (Nop) SetOpenSessions(int)                 {}

// Handler serves the gathered metrics for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
