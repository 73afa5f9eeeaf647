package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics captures sweep health signals.
type SchedulerMetrics struct {
	jobRuns      *prometheus.CounterVec
	jobErrors    *prometheus.CounterVec
	jobTimeouts  *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	batchHandled *prometheus.CounterVec
}

var (
	schedulerOnce sync.Once
	schedulerInst *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics, registering the
// collectors on first use.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerInst = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerInst
}

func newSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagewire_scheduler_job_runs_total",
			Help: "Number of scheduler job executions.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagewire_scheduler_job_errors_total",
			Help: "Number of scheduler job executions that returned an error.",
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagewire_scheduler_job_timeouts_total",
			Help: "Number of scheduler job executions that hit their deadline.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stagewire_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		batchHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagewire_scheduler_batch_items_total",
			Help: "Items handled per scheduler job, by outcome.",
		}, []string{"job", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.jobRuns, m.jobErrors, m.jobTimeouts, m.jobDuration, m.batchHandled} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncBatchItem(job, outcome string) {
	m.batchHandled.WithLabelValues(job, outcome).Inc()
}
