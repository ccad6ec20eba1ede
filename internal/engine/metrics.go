package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	ticks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the engine collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simcore",
				Subsystem: "engine",
				Name:      "ticks_total",
				Help:      "Executed ticks by outcome.",
			},
			[]string{"process", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "simcore",
				Subsystem: "engine",
				Name:      "tick_duration_seconds",
				Help:      "Time spent executing one tick.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"process"},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.ticks, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(process, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(process, outcome).Inc()
	m.duration.WithLabelValues(process).Observe(d.Seconds())
}
