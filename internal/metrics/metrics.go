// Package metrics exposes the detector's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every Prometheus metric the detector reports.
type Registry struct {
	reg *prometheus.Registry

	PhaseDuration *prometheus.HistogramVec
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram

	TopicsProcessed prometheus.Gauge
	EventsUpserted  prometheus.Gauge
	BreakingCount   prometheus.Gauge
	TrendingCount   prometheus.Gauge

	GateRejects   *prometheus.CounterVec
	SourceErrors  *prometheus.CounterVec
	BudgetTrips   prometheus.Counter
	DedupeSavings prometheus.Counter
}

// NewRegistry builds and registers every metric on a private registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendwatch_phase_duration_seconds",
				Help:    "Duration of each detection phase in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"phase"},
		),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_runs_total",
				Help: "Total detection runs by outcome",
			},
			[]string{"status"},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendwatch_run_duration_seconds",
				Help:    "End-to-end detection run duration in seconds",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
			},
		),

		TopicsProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendwatch_topics_processed",
			Help: "Topics aggregated in the most recent run",
		}),

		EventsUpserted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendwatch_events_upserted",
			Help: "Trend events written in the most recent run",
		}),

		BreakingCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendwatch_breaking_count",
			Help: "Breaking events in the most recent run",
		}),

		TrendingCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trendwatch_trending_count",
			Help: "Trending events in the most recent run",
		}),

		GateRejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_gate_rejects_total",
				Help: "Quality gate rejections by reason",
			},
			[]string{"reason"},
		),

		SourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_source_errors_total",
				Help: "Mention loader failures by source",
			},
			[]string{"source"},
		),

		BudgetTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendwatch_budget_trips_total",
			Help: "Runs that exhausted the execution budget",
		}),

		DedupeSavings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendwatch_dedupe_savings_total",
			Help: "Raw-minus-deduplicated mentions collapsed across runs",
		}),
	}

	r.reg.MustRegister(
		r.PhaseDuration, r.RunsTotal, r.RunDuration,
		r.TopicsProcessed, r.EventsUpserted, r.BreakingCount, r.TrendingCount,
		r.GateRejects, r.SourceErrors, r.BudgetTrips, r.DedupeSavings,
	)
	return r
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
