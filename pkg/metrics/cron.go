package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronOutcomeOK     = "ok"
	cronOutcomeFailed = "failed"
)

// CronJobMetrics tracks cron worker runs per job.
type CronJobMetrics struct {
	runs    *prometheus.CounterVec
	seconds *prometheus.HistogramVec
}

// NewCronJobMetrics registers the cron collectors on reg. A nil registerer
// yields a recorder that drops every observation.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clientseeker",
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		seconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clientseeker",
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job wall time.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.seconds)
	return m
}

// Observe records one finished run of job; a non-nil err counts as failed.
func (c *CronJobMetrics) Observe(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := cronOutcomeOK
	if err != nil {
		outcome = cronOutcomeFailed
	}
	c.seconds.WithLabelValues(job).Observe(took.Seconds())
	c.runs.WithLabelValues(job, outcome).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
