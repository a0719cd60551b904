// Package metrics provides Prometheus metrics instrumentation for the assistant.
//
// It exposes operational metrics about the chat pipeline: task submissions
// and completions by intent and status, step execution durations, data fetch
// and insight generation durations, and cache hit/miss counts for both the
// data cache and the insight cache. All metrics are exposed via the /metrics
// HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - chatlens_tasks_submitted_total: Counter of submitted tasks by intent
//   - chatlens_tasks_finished_total: Counter of finished tasks by status
//   - chatlens_active_tasks: Gauge of tasks currently registered and unfinished
//   - chatlens_step_seconds: Histogram of task step execution duration
//   - chatlens_data_fetch_seconds: Histogram of data fetch duration
//   - chatlens_insight_generate_seconds: Histogram of insight generation duration
//   - chatlens_cache_requests_total: Counter of cache lookups by cache and outcome
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pivotlabs/chatlens/pkg/chat"
	"github.com/pivotlabs/chatlens/pkg/dataquery"
	"github.com/pivotlabs/chatlens/pkg/insight"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	TasksSubmittedTotal    *prometheus.CounterVec
	TasksFinishedTotal     *prometheus.CounterVec
	ActiveTasks            prometheus.Gauge
	StepSeconds            prometheus.Histogram
	DataFetchSeconds       prometheus.Histogram
	InsightGenerateSeconds prometheus.Histogram
	CacheRequestsTotal     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TasksSubmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatlens_tasks_submitted_total",
			Help: "Total number of submitted chat tasks by intent",
		}, []string{"intent"}),

		TasksFinishedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatlens_tasks_finished_total",
			Help: "Total number of finished chat tasks by terminal status",
		}, []string{"status"}),

		ActiveTasks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chatlens_active_tasks",
			Help: "Number of registered tasks that have not finished",
		}),

		StepSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatlens_step_seconds",
			Help:    "Time spent executing one task step",
			Buckets: prometheus.DefBuckets,
		}),

		DataFetchSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatlens_data_fetch_seconds",
			Help:    "Time spent serving one data fetch request",
			Buckets: prometheus.DefBuckets,
		}),

		InsightGenerateSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatlens_insight_generate_seconds",
			Help:    "Time spent generating one insight on a cache miss",
			Buckets: prometheus.DefBuckets,
		}),

		CacheRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatlens_cache_requests_total",
			Help: "Total number of cache lookups by cache and outcome",
		}, []string{"cache", "outcome"}),
	}
}

// DataQuery returns the metrics sink for the data fetch layer.
func (m *Metrics) DataQuery() dataquery.Metrics { return dataQueryMetrics{m} }

// Insight returns the metrics sink for the insight layer.
func (m *Metrics) Insight() insight.Metrics { return insightMetrics{m} }

// Chat returns the metrics sink for the task manager.
func (m *Metrics) Chat() chat.Metrics { return chatMetrics{m} }

type dataQueryMetrics struct{ m *Metrics }

func (d dataQueryMetrics) CacheHit() {
	d.m.CacheRequestsTotal.WithLabelValues("data", "hit").Inc()
}

func (d dataQueryMetrics) CacheMiss() {
	d.m.CacheRequestsTotal.WithLabelValues("data", "miss").Inc()
}

func (d dataQueryMetrics) ObserveFetch(seconds float64) {
	d.m.DataFetchSeconds.Observe(seconds)
}

type insightMetrics struct{ m *Metrics }

func (i insightMetrics) CacheHit() {
	i.m.CacheRequestsTotal.WithLabelValues("insight", "hit").Inc()
}

func (i insightMetrics) CacheMiss() {
	i.m.CacheRequestsTotal.WithLabelValues("insight", "miss").Inc()
}

func (i insightMetrics) ObserveGenerate(seconds float64) {
	i.m.InsightGenerateSeconds.Observe(seconds)
}

type chatMetrics struct{ m *Metrics }

func (c chatMetrics) TaskSubmitted(intent string) {
	c.m.TasksSubmittedTotal.WithLabelValues(intent).Inc()
}

func (c chatMetrics) TaskFinished(status string) {
	c.m.TasksFinishedTotal.WithLabelValues(status).Inc()
}

func (c chatMetrics) ObserveStep(seconds float64) {
	c.m.StepSeconds.Observe(seconds)
}

func (c chatMetrics) SetActiveTasks(n int) {
	c.m.ActiveTasks.Set(float64(n))
}
