package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/domain/repositories"
)

// KnowledgeGraphError reports a merge that could not be applied; it is logged and never retried
type KnowledgeGraphError struct {
	MeetingID uuid.UUID
	Err       error
}

func (e *KnowledgeGraphError) Error() string {
	return fmt.Sprintf("knowledge graph update for meeting %s: %v", e.MeetingID, e.Err)
}

func (e *KnowledgeGraphError) Unwrap() error { return e.Err }

// KnowledgeGraphStage merges analysis deltas into the organization's graph
type KnowledgeGraphStage struct {
	meetings  repositories.MeetingRepository
	knowledge repositories.KnowledgeRepository
	logger    *zap.Logger
}

// NewKnowledgeGraphStage creates a KnowledgeGraphStage
func NewKnowledgeGraphStage(meetings repositories.MeetingRepository, knowledge repositories.KnowledgeRepository, logger *zap.Logger) *KnowledgeGraphStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeGraphStage{meetings: meetings, knowledge: knowledge, logger: logger}
}

// Run merges delta into the graph. Failures are logged as *KnowledgeGraphError and never returned.
func (s *KnowledgeGraphStage) Run(ctx context.Context, meetingID uuid.UUID, delta entities.KnowledgeDelta) error {
	s.run(ctx, meetingID, delta)
	return nil
}

func (s *KnowledgeGraphStage) run(ctx context.Context, meetingID uuid.UUID, delta entities.KnowledgeDelta) outcome {
	if delta.IsEmpty() {
		return outcomeSkipped
	}

	if err := s.merge(ctx, meetingID, delta); err != nil {
		kgErr := &KnowledgeGraphError{MeetingID: meetingID, Err: err}
		s.logger.Error("❌ Knowledge graph update failed",
			zap.String("meeting_id", meetingID.String()),
			zap.Error(kgErr),
		)
		return outcomeError
	}

	s.logger.Info("🕸️ Knowledge graph updated",
		zap.String("meeting_id", meetingID.String()),
		zap.Int("entities", len(delta.Entities)),
		zap.Int("relationships", len(delta.Relationships)),
	)
	return outcomeSuccess
}

func (s *KnowledgeGraphStage) merge(ctx context.Context, meetingID uuid.UUID, delta entities.KnowledgeDelta) error {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to load meeting: %w", err)
	}
	if meeting == nil {
		return entities.ErrMeetingNotFound
	}
	return s.knowledge.Merge(ctx, meeting.OrganizationID, meetingID, delta)
}
