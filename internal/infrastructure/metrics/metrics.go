package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/johnquangdev/meetingmind/pkg/ai"
)

// Stage outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeSkipped   = "skipped"
	OutcomeRetry     = "retry"
	OutcomePermanent = "permanent"
	OutcomeDead      = "dead"
	OutcomeError     = "error"
)

// PipelineMetrics holds all Prometheus metrics for the meeting pipeline.
type PipelineMetrics struct {
	StageRunsTotal       *prometheus.CounterVec
	StageDurationSeconds *prometheus.HistogramVec
	QueueDepth           *prometheus.GaugeVec
	LLMRequestsTotal     *prometheus.CounterVec
	DeadJobsTotal        *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline collectors on reg
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		StageRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingmind_stage_runs_total",
				Help: "Stage executions by outcome",
			},
			[]string{"stage", "outcome"},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meetingmind_stage_duration_seconds",
				Help:    "Stage execution latency",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800, 3600},
			},
			[]string{"stage"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meetingmind_queue_depth",
				Help: "Jobs waiting in the queue",
			},
			[]string{"queue"},
		),
		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingmind_llm_requests_total",
				Help: "Language model calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		DeadJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetingmind_jobs_dead_total",
				Help: "Jobs moved to the dead letter list",
			},
			[]string{"job"},
		),
	}
}

// ObserveStage records one stage run
func (m *PipelineMetrics) ObserveStage(stage, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.StageRunsTotal.WithLabelValues(stage, outcome).Inc()
	m.StageDurationSeconds.WithLabelValues(stage).Observe(took.Seconds())
}

// SetQueueDepth updates the depth gauge for queue
func (m *PipelineMetrics) SetQueueDepth(queue string, depth int64) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// IncDeadJob counts a dead-lettered job
func (m *PipelineMetrics) IncDeadJob(job string) {
	if m == nil {
		return
	}
	m.DeadJobsTotal.WithLabelValues(job).Inc()
}

// InstrumentLLM counts calls made through client
func (m *PipelineMetrics) InstrumentLLM(client ai.LLMClient) ai.LLMClient {
	if m == nil {
		return client
	}
	return &instrumentedLLM{LLMClient: client, requests: m.LLMRequestsTotal}
}

type instrumentedLLM struct {
	ai.LLMClient
	requests *prometheus.CounterVec
}

func (c *instrumentedLLM) Complete(ctx context.Context, req ai.LLMRequest) (string, error) {
	text, err := c.LLMClient.Complete(ctx, req)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	c.requests.WithLabelValues(c.Provider(), outcome).Inc()
	return text, err
}
