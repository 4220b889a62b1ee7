package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRecordsTotal = "placesync_records_total"
	MetricRunsTotal    = "placesync_runs_total"
	MetricRunDuration  = "placesync_run_duration_seconds"
)

// Record outcome labels.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
	OutcomeMerged   = "merged"
)

// Metrics holds the pipeline's Prometheus collectors. All methods are safe
// for concurrent use and for a nil receiver.
type Metrics struct {
	records  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecordsTotal,
				Help: "Records processed by run kind and outcome",
			},
			[]string{"run", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRunsTotal,
				Help: "Pipeline runs by kind and terminal state",
			},
			[]string{"run", "state"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRunDuration,
				Help:    "Pipeline run duration in seconds by kind",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"run"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.records, m.runs, m.duration}
}

func (m *Metrics) addRecords(run, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.records.WithLabelValues(run, outcome).Add(float64(n))
}

func (m *Metrics) finishRun(run, state string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(run, state).Inc()
	m.duration.WithLabelValues(run).Observe(seconds)
}
