package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
)

const (
	RunOutcomeSuccess          = "success"
	RunOutcomeConfiguration    = "configuration_error"
	RunOutcomeDataIntegrity    = "data_integrity_error"
	RunOutcomeDeadlineExceeded = "deadline_exceeded"
	RunOutcomeTransient        = "transient_error"

	AggregateOutcomeCommitted  = "committed"
	AggregateOutcomeZeroAmount = "zero_amount"
	AggregateOutcomeFailed     = "failed"

	LineItemAggregated = "aggregated"
	LineItemIgnored    = "ignored"

	SchedulerTickRan     = "ran"
	SchedulerTickSkipped = "lock_held"
	SchedulerTickFailed  = "failed"
)

// PipelineMetrics captures processing pipeline health as prometheus series.
type PipelineMetrics struct {
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	aggregates     *prometheus.CounterVec
	collisions     prometheus.Counter
	lineItems      *prometheus.CounterVec
	schedulerTicks *prometheus.CounterVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics registered on the
// default prometheus registerer.
func Pipeline(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = NewPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

func NewPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "salesledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &PipelineMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salesledger_pipeline_runs_total",
			Help:        "Pipeline runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "salesledger_pipeline_run_duration_seconds",
			Help:        "Wall time of a pipeline run.",
			Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		aggregates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salesledger_pipeline_aggregates_total",
			Help:        "Aggregates handled by the commit phase, by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "salesledger_pipeline_number_collisions_total",
			Help:        "Transaction number collisions that triggered a retry.",
			ConstLabels: constLabels,
		}),
		lineItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salesledger_pipeline_line_items_total",
			Help:        "Fetched line items by disposition.",
			ConstLabels: constLabels,
		}, []string{"disposition"}),
		schedulerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salesledger_scheduler_ticks_total",
			Help:        "Scheduler ticks by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
	}

	registerer.MustRegister(
		m.runs,
		m.runDuration,
		m.aggregates,
		m.collisions,
		m.lineItems,
		m.schedulerTicks,
	)
	return m
}

func (m *PipelineMetrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) AddAggregates(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.aggregates.WithLabelValues(outcome).Add(float64(n))
}

func (m *PipelineMetrics) IncNumberCollision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}

func (m *PipelineMetrics) AddLineItems(disposition string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lineItems.WithLabelValues(disposition).Add(float64(n))
}

func (m *PipelineMetrics) IncSchedulerTick(result string) {
	if m == nil {
		return
	}
	m.schedulerTicks.WithLabelValues(result).Inc()
}

// ClassifyRunOutcome maps a run error to its outcome label.
func ClassifyRunOutcome(err error) string {
	if err == nil {
		return RunOutcomeSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return RunOutcomeDeadlineExceeded
	}
	switch aggregationdomain.Classify(err) {
	case aggregationdomain.KindConfiguration:
		return RunOutcomeConfiguration
	case aggregationdomain.KindDataIntegrity:
		return RunOutcomeDataIntegrity
	default:
		return RunOutcomeTransient
	}
}
