package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attendance"

// Metrics holds the collectors for clocking and the shift jobs. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ClockEvents     *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	JobRuns         *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobItems        *prometheus.CounterVec
}

// New registers the collectors with reg. Use prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ClockEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clock_events_total",
				Help:      "Clock-in and clock-out attempts by outcome",
			},
			[]string{"action", "outcome"},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Worked time of sessions closed by the employee",
				Buckets:   prometheus.LinearBuckets(3600, 3600, 12),
			},
		),
		JobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Shift job runs by result",
			},
			[]string{"job", "result"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of shift job runs",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),
		JobItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_items_total",
				Help:      "Records handled by shift jobs by outcome",
			},
			[]string{"job", "outcome"},
		),
	}
}

func (m *Metrics) RecordClock(action, outcome string) {
	if m == nil {
		return
	}
	m.ClockEvents.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) RecordSession(worked time.Duration) {
	if m == nil {
		return
	}
	m.SessionDuration.Observe(worked.Seconds())
}

// RecordJob records one run of job. err marks the run as failed.
func (m *Metrics) RecordJob(job string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *Metrics) AddJobItems(job, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobItems.WithLabelValues(job, outcome).Add(float64(n))
}
