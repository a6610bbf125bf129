// Package metrics provides Prometheus metrics for the news bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsbot"

// Cycle outcomes.
const (
	OutcomeSent      = "sent"
	OutcomeUnchanged = "unchanged"
	OutcomeNoNew     = "no_new"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	PollCycles      *prometheus.CounterVec
	ReportCycles    *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	Deliveries      *prometheus.CounterVec
	Classified      *prometheus.CounterVec
	SeenItems       prometheus.Gauge
	MarketStale     *prometheus.GaugeVec
	SummaryFallback prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		PollCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"outcome"}),
		ReportCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cycles_total",
			Help:      "Report cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll and report cycles in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"cycle"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Messages delivered by destination and result",
		}, []string{"destination", "result"}),
		Classified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_classified_total",
			Help:      "New items by classification level",
		}, []string{"level"}),
		SeenItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_items",
			Help:      "Size of the persisted seen-set",
		}),
		MarketStale: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_indicator_stale",
			Help:      "Market indicator state (0 = live, 1 = cached, -1 = unavailable)",
		}, []string{"indicator"}),
		SummaryFallback: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_fallback_total",
			Help:      "Reports that used the deterministic summary",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RecordPoll records a finished poll cycle. Safe on a nil receiver.
func (m *Metrics) RecordPoll(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PollCycles.WithLabelValues(outcome).Inc()
	m.CycleDuration.WithLabelValues("poll").Observe(d.Seconds())
}

// RecordReport records a finished report cycle. Safe on a nil receiver.
func (m *Metrics) RecordReport(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportCycles.WithLabelValues(outcome).Inc()
	m.CycleDuration.WithLabelValues("report").Observe(d.Seconds())
}

// RecordDelivery records one send attempt. Safe on a nil receiver.
func (m *Metrics) RecordDelivery(destination string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Deliveries.WithLabelValues(destination, result).Inc()
}

// RecordClassified counts an item at the given level. Safe on a nil receiver.
func (m *Metrics) RecordClassified(level string) {
	if m == nil {
		return
	}
	m.Classified.WithLabelValues(level).Inc()
}

// SetSeen updates the seen-set gauge. Safe on a nil receiver.
func (m *Metrics) SetSeen(n int) {
	if m == nil {
		return
	}
	m.SeenItems.Set(float64(n))
}

// SetMarketState records whether an indicator was live, stale or missing.
// Safe on a nil receiver.
func (m *Metrics) SetMarketState(indicator string, present, stale bool) {
	if m == nil {
		return
	}
	v := 0.0
	switch {
	case !present:
		v = -1
	case stale:
		v = 1
	}
	m.MarketStale.WithLabelValues(indicator).Set(v)
}

// RecordFallback counts a report built without the generator. Safe on a nil receiver.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.SummaryFallback.Inc()
}
