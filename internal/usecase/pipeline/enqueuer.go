package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
)

// Enqueuer schedules stage jobs on the pipeline queue
type Enqueuer struct {
	queue  queue.Queue
	logger *zap.Logger
}

// NewEnqueuer creates an Enqueuer for q
func NewEnqueuer(q queue.Queue, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{queue: q, logger: logger}
}

// EnqueueTranscription schedules the transcription stage for a meeting
func (e *Enqueuer) EnqueueTranscription(ctx context.Context, meetingID uuid.UUID) (*entities.Job, error) {
	return e.enqueue(ctx, entities.NewJob(entities.JobNameTranscribe, meetingID))
}

// EnqueueAnalysis schedules the analysis stage for a meeting
func (e *Enqueuer) EnqueueAnalysis(ctx context.Context, meetingID uuid.UUID) (*entities.Job, error) {
	return e.enqueue(ctx, entities.NewJob(entities.JobNameAnalyze, meetingID))
}

// EnqueueKnowledgeGraph schedules a merge of delta into the meeting's organization graph
func (e *Enqueuer) EnqueueKnowledgeGraph(ctx context.Context, meetingID uuid.UUID, delta entities.KnowledgeDelta) (*entities.Job, error) {
	job := entities.NewJob(entities.JobNameUpdateKnowledgeGraph, meetingID)
	job.Delta = &delta
	return e.enqueue(ctx, job)
}

func (e *Enqueuer) enqueue(ctx context.Context, job *entities.Job) (*entities.Job, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", job.Name, err)
	}

	if e.logger != nil {
		e.logger.Info("📥 Job enqueued",
			zap.String("job_id", job.ID.String()),
			zap.String("job_name", string(job.Name)),
			zap.String("meeting_id", job.MeetingID.String()),
			zap.String("queue", e.queue.Name()),
		)
	}
	return job, nil
}
