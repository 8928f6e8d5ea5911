package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/domain/repositories"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/metrics"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
	"github.com/johnquangdev/meetingmind/pkg/config"
	"github.com/johnquangdev/meetingmind/pkg/jobcontext"
)

// RunnerConfig tunes the worker pool
type RunnerConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	JobTimeout      time.Duration
	RecoverInterval time.Duration
	DepthInterval   time.Duration
	// LeaseRenewInterval is how often a running job's lease is extended; keep it under the visibility timeout
	LeaseRenewInterval time.Duration
	// Retry applies to transcription and analysis jobs; knowledge graph jobs never retry
	Retry jobcontext.RetryPolicy
}

// RunnerConfigFromConfig derives the runner settings.
// Stale leases are checked, and running jobs renew their lease, twice per visibility timeout.
func RunnerConfigFromConfig(cfg *config.Config) RunnerConfig {
	return RunnerConfig{
		Concurrency:        cfg.Worker.Concurrency,
		PollInterval:       cfg.Worker.PollInterval,
		JobTimeout:         cfg.Worker.JobTimeout,
		RecoverInterval:    cfg.Queue.VisibilityTimeout / 2,
		LeaseRenewInterval: cfg.Queue.VisibilityTimeout / 2,
		Retry: jobcontext.RetryPolicy{
			MaxRetries: cfg.Queue.MaxRetries,
			Interval:   cfg.Queue.RetryInterval,
		},
	}
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.RecoverInterval <= 0 {
		c.RecoverInterval = time.Minute
	}
	if c.DepthInterval <= 0 {
		c.DepthInterval = 15 * time.Second
	}
	if c.LeaseRenewInterval <= 0 {
		c.LeaseRenewInterval = 15 * time.Minute
	}
	return c
}

// RunnerDeps wires a Runner
type RunnerDeps struct {
	Queue         queue.Queue
	Meetings      repositories.MeetingRepository
	Transcription *TranscriptionStage
	Analysis      *AnalysisStage
	Knowledge     *KnowledgeGraphStage
	// Metrics is optional
	Metrics *metrics.PipelineMetrics
	Config  RunnerConfig
	Logger  *zap.Logger
}

// Runner claims jobs from the queue and dispatches them to their stage
type Runner struct {
	queue         queue.Queue
	meetings      repositories.MeetingRepository
	transcription *TranscriptionStage
	analysis      *AnalysisStage
	knowledge     *KnowledgeGraphStage
	metrics       *metrics.PipelineMetrics
	cfg           RunnerConfig
	logger        *zap.Logger

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRunner creates a Runner
func NewRunner(deps RunnerDeps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:         deps.Queue,
		meetings:      deps.Meetings,
		transcription: deps.Transcription,
		analysis:      deps.Analysis,
		knowledge:     deps.Knowledge,
		metrics:       deps.Metrics,
		cfg:           deps.Config.withDefaults(),
		logger:        logger,
	}
}

// Start launches the workers, the stale lease recovery loop and the queue depth loop
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("runner already running")
	}
	r.isRunning = true
	r.stopChan = make(chan struct{})

	r.logger.Info("🚀 Starting pipeline workers",
		zap.Int("worker_count", r.cfg.Concurrency),
		zap.String("queue", r.queue.Name()),
		zap.Int("max_retries", r.cfg.Retry.MaxRetries),
		zap.Duration("retry_interval", r.cfg.Retry.Interval),
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.wg.Add(1)
	go r.every(ctx, r.cfg.RecoverInterval, r.recoverStale)

	r.wg.Add(1)
	go r.every(ctx, r.cfg.DepthInterval, r.reportDepth)

	return nil
}

// Stop signals every loop and waits for in-flight jobs to finish
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return fmt.Errorf("runner not running")
	}

	r.logger.Info("🛑 Stopping pipeline workers...")
	close(r.stopChan)
	r.wg.Wait()
	r.isRunning = false
	r.logger.Info("✅ Pipeline workers stopped")
	return nil
}

func (r *Runner) worker(ctx context.Context, workerID int) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.Debug("👷 Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-r.stopChan:
			r.logger.Debug("👷 Worker stopping", zap.Int("worker_id", workerID))
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx, workerID)
		}
	}
}

// drain processes due jobs until the queue is empty or the runner stops
func (r *Runner) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.ProcessNext(ctx, workerID)
		if err != nil {
			r.logger.Error("❌ Failed to claim job",
				zap.Int("worker_id", workerID),
				zap.Error(err),
			)
			return
		}
		if !processed {
			return
		}
	}
}

func (r *Runner) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (r *Runner) recoverStale(ctx context.Context) {
	n, err := r.queue.RecoverStale(ctx)
	if err != nil {
		r.logger.Error("❌ Failed to recover stale jobs", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Warn("🧹 Re-queued jobs with expired leases",
			zap.Int("count", n),
			zap.String("queue", r.queue.Name()),
		)
	}
}

func (r *Runner) reportDepth(ctx context.Context) {
	depth, err := r.queue.Depth(ctx)
	if err != nil {
		r.logger.Warn("⚠️ Failed to read queue depth", zap.Error(err))
		return
	}
	r.metrics.SetQueueDepth(r.queue.Name(), depth)
}

// ProcessNext claims one due job and runs it to an outcome.
// It reports false when nothing was due.
func (r *Runner) ProcessNext(ctx context.Context, workerID int) (bool, error) {
	job, err := r.queue.Claim(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	r.handle(ctx, job, workerID)
	return true, nil
}

func (r *Runner) handle(ctx context.Context, job *entities.Job, workerID int) {
	logger := r.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("job_name", string(job.Name)),
		zap.String("meeting_id", job.MeetingID.String()),
		zap.Int("attempt", job.Attempt),
		zap.Int("worker_id", workerID),
	)

	// bookkeeping must land even when ctx is cancelled mid-job
	bctx, cancel := detached(ctx)
	defer cancel()

	if err := job.Validate(); err != nil {
		logger.Error("❌ Dropping invalid job", zap.Error(err))
		r.deadLetter(bctx, job, err, logger)
		return
	}

	policy := r.policyFor(job.Name)
	stage := string(job.Name.Stage())
	start := time.Now()

	jobCtx, jobCancel := jobcontext.JobBegin(ctx, jobcontext.JobMetadata{
		JobID:        job.ID,
		JobName:      string(job.Name),
		MeetingID:    job.MeetingID,
		WorkerID:     workerID,
		RetryAttempt: job.Attempt,
		MaxRetries:   policy.MaxRetries,
		StartTime:    start,
	}, r.cfg.JobTimeout)

	stopRenew := r.renewLease(jobCtx, job, logger)
	var out outcome
	err := jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
		var runErr error
		out, runErr = r.dispatch(ctx, job)
		return runErr
	})
	stopRenew()
	jobCancel()
	took := time.Since(start)

	switch {
	case err == nil:
		if ackErr := r.queue.Ack(bctx, job); ackErr != nil {
			logger.Error("❌ Failed to ack job", zap.Error(ackErr))
		}
		if out == "" {
			out = outcomeSuccess
		}
		r.metrics.ObserveStage(stage, out, took)
		logger.Info("✅ Job completed", zap.String("outcome", out), zap.Duration("took", took))

	case jobcontext.IsPermanent(err):
		if ackErr := r.queue.Ack(bctx, job); ackErr != nil {
			logger.Error("❌ Failed to ack job", zap.Error(ackErr))
		}
		r.metrics.ObserveStage(stage, metrics.OutcomePermanent, took)
		logger.Warn("⛔ Job failed permanently", zap.Error(err), zap.Duration("took", took))
		// an analysis job that arrived before its transcript is not a meeting failure
		if !errors.Is(err, entities.ErrTranscriptNotReady) && !errors.Is(err, entities.ErrMeetingNotFound) {
			r.failMeeting(bctx, job, logger)
		}

	default:
		delay, ok := policy.NextDelay(job.Attempt)
		if !ok {
			r.metrics.ObserveStage(stage, metrics.OutcomeDead, took)
			r.deadLetter(bctx, job, err, logger)
			return
		}

		job.MarkForRetry(err.Error(), delay)
		if retryErr := r.queue.Retry(bctx, job); retryErr != nil {
			logger.Error("❌ Failed to schedule retry; the lease will expire and redeliver", zap.Error(retryErr))
		}
		r.metrics.ObserveStage(stage, metrics.OutcomeRetry, took)
		logger.Warn("🔁 Job failed, retry scheduled",
			zap.Error(err),
			zap.Int("next_attempt", job.Attempt),
			zap.Duration("delay", delay),
		)
	}
}

// renewLease extends the job's lease every LeaseRenewInterval until the returned stop func is called
func (r *Runner) renewLease(ctx context.Context, job *entities.Job, logger *zap.Logger) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(r.cfg.LeaseRenewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := r.queue.Extend(ctx, job)
				switch {
				case err != nil:
					logger.Warn("⚠️ Failed to extend job lease", zap.Error(err))
				case !held:
					logger.Warn("⚠️ Job lease lost; another worker may pick the job up")
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (r *Runner) dispatch(ctx context.Context, job *entities.Job) (outcome, error) {
	switch job.Name {
	case entities.JobNameTranscribe:
		return r.transcription.run(ctx, job.MeetingID)
	case entities.JobNameAnalyze:
		return r.analysis.run(ctx, job.MeetingID)
	case entities.JobNameUpdateKnowledgeGraph:
		return r.knowledge.run(ctx, job.MeetingID, *job.Delta), nil
	}
	return outcomeError, jobcontext.Permanent(fmt.Errorf("%w: unknown job name %q", entities.ErrInvalidJob, job.Name))
}

func (r *Runner) policyFor(name entities.JobName) jobcontext.RetryPolicy {
	if name == entities.JobNameUpdateKnowledgeGraph {
		return jobcontext.NoRetry
	}
	return r.cfg.Retry
}

func (r *Runner) deadLetter(ctx context.Context, job *entities.Job, cause error, logger *zap.Logger) {
	if err := r.queue.DeadLetter(ctx, job, cause.Error()); err != nil {
		logger.Error("❌ Failed to dead-letter job", zap.Error(err))
	}
	r.metrics.IncDeadJob(string(job.Name))
	r.failMeeting(ctx, job, logger)

	logger.Error("💀 dead job",
		zap.Error(cause),
		zap.Int("attempts", job.Attempt+1),
	)
}

// failMeeting moves the job's meeting to the failed lifecycle status; knowledge graph jobs never fail a meeting
func (r *Runner) failMeeting(ctx context.Context, job *entities.Job, logger *zap.Logger) {
	if job.Name == entities.JobNameUpdateKnowledgeGraph || job.MeetingID == uuid.Nil {
		return
	}
	if err := r.meetings.UpdateMeetingStatus(ctx, job.MeetingID, entities.MeetingStatusFailed); err != nil {
		logger.Error("❌ Failed to mark meeting failed", zap.Error(err))
	}
}
