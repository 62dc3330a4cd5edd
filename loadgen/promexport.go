package loadgen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valery-judah/semantic-shelf/model"
)

// runMetrics collects per-run request metrics for a node-exporter style
// textfile. A fresh registry is used per run.
type runMetrics struct {
	registry *prometheus.Registry
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func newRunMetrics(runID, scenarioID string) *runMetrics {
	labels := prometheus.Labels{"run_id": runID, "scenario_id": scenarioID}
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "shelfeval",
			Subsystem:   "loadgen",
			Name:        "request_duration_seconds",
			Help:        "Latency of similar-items requests issued by the load generator.",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
			ConstLabels: labels,
		}, []string{"phase", "arm"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "shelfeval",
			Subsystem:   "loadgen",
			Name:        "requests_total",
			Help:        "Requests issued by the load generator by outcome.",
			ConstLabels: labels,
		}, []string{"phase", "arm", "outcome"}),
	}
	m.registry.MustRegister(m.latency, m.requests)
	return m
}

func (m *runMetrics) observe(rec model.RequestRecord) {
	arm := string(rec.Arm)
	if arm == "" {
		arm = "none"
	}
	outcome := "passed"
	if !rec.Passed {
		outcome = string(rec.Failure())
	}
	m.latency.WithLabelValues(string(rec.Phase), arm).Observe(rec.LatencyMS / 1000)
	m.requests.WithLabelValues(string(rec.Phase), arm, outcome).Inc()
}

func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
