// Package metrics exposes service counters as prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"well-go/internal/well"
)

const namespace = "well"

// Collectors implements well.Instrumentation on its own registry.
type Collectors struct {
	registry *prometheus.Registry

	recordsAppended   *prometheus.CounterVec
	xpAwards          *prometheus.CounterVec
	xpAwarded         prometheus.Counter
	insightRequests   *prometheus.CounterVec
	completionSeconds *prometheus.HistogramVec
}

var _ well.Instrumentation = (*Collectors)(nil)

// New creates and registers the collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		recordsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_appended_total",
				Help:      "Wellness records appended to the ledger, by record type.",
			},
			[]string{"type"},
		),
		xpAwards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "xp_awards_total",
				Help:      "XP credits, by whether a streak bonus applied.",
			},
			[]string{"bonus"},
		),
		xpAwarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "xp_awarded_total",
				Help:      "Total XP credited after multipliers.",
			},
		),
		insightRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "insight_requests_total",
				Help:      "Insight requests, by how they were served.",
			},
			[]string{"outcome"},
		),
		completionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_duration_seconds",
				Help:      "Latency of text-completion calls in seconds.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"result"},
		),
	}
	c.registry.MustRegister(
		c.recordsAppended,
		c.xpAwards,
		c.xpAwarded,
		c.insightRequests,
		c.completionSeconds,
		collectors.NewGoCollector(),
	)
	return c
}

// Gatherer returns the registry for exposition.
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.registry
}

func (c *Collectors) RecordAppended(t well.RecordType) {
	c.recordsAppended.WithLabelValues(string(t)).Inc()
}

func (c *Collectors) XPCredited(awarded int64, multiplier float64) {
	bonus := "false"
	if multiplier > 1 {
		bonus = "true"
	}
	c.xpAwards.WithLabelValues(bonus).Inc()
	c.xpAwarded.Add(float64(awarded))
}

func (c *Collectors) InsightServed(outcome well.InsightOutcome) {
	c.insightRequests.WithLabelValues(string(outcome)).Inc()
}

func (c *Collectors) CompletionObserved(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.completionSeconds.WithLabelValues(result).Observe(elapsed.Seconds())
}
