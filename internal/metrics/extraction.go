// Package metrics exposes extraction counters and latencies to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bptracker"

// Extraction implements core.Observer.
type Extraction struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
}

// NewExtraction creates the collectors and registers them on reg.
func NewExtraction(reg prometheus.Registerer) (*Extraction, error) {
	m := &Extraction{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Extraction runs by final status (auto_verified, needs_review, manual_required, failed).",
			},
			[]string{"status"},
		),
		// 50ms to ~100s; AI fallbacks sit at the slow end
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one extraction run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_attempts_total",
				Help:      "Engine attempts by engine and outcome.",
			},
			[]string{"engine", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_attempt_duration_seconds",
				Help:      "Wall time of one engine attempt.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"engine"},
		),
	}
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Extraction) ObserveRun(status string, d time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Extraction) ObserveAttempt(engine, outcome string, d time.Duration) {
	m.attemptsTotal.WithLabelValues(engine, outcome).Inc()
	m.attemptDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// Describe implements prometheus.Collector.
func (m *Extraction) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.attemptsTotal.Describe(ch)
	m.attemptDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Extraction) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.attemptsTotal.Collect(ch)
	m.attemptDuration.Collect(ch)
}

// WriteTextfile dumps everything gathered by g in the node_exporter textfile
// format. Batch commands call it once on exit.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
