// Package metrics exposes prediction counters and latency for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeLowRisk  = "low_risk"
	OutcomeHighRisk = "high_risk"
	OutcomeInvalid  = "invalid_input"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	predictions *prometheus.CounterVec
	duration    prometheus.Histogram
	gatherer    prometheus.Gatherer
}

// New registers the collectors on a fresh registry so tests and the server never share state.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heartrisk",
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heartrisk",
			Name:      "inference_duration_seconds",
			Help:      "Time spent encoding, scaling and classifying one record.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.predictions, m.duration, collectors.NewGoCollector())
	return m
}

func (m *Metrics) Observe(outcome string, elapsed time.Duration) {
	m.predictions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeLowRisk || outcome == OutcomeHighRisk {
		m.duration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) Count(outcome string) prometheus.Counter {
	return m.predictions.WithLabelValues(outcome)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
