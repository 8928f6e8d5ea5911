package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

// MeetingRepository defines the meeting reads and state transitions the pipeline performs.
// Getters return (nil, nil) when the row does not exist.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, m *entities.Meeting) error
	GetMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)

	// Stage transitions
	UpdateTranscriptStatus(ctx context.Context, id uuid.UUID, status entities.StageStatus, lastErr *string) error
	UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status entities.StageStatus, lastErr *string) error
	UpdateMeetingStatus(ctx context.Context, id uuid.UUID, status entities.MeetingStatus) error
	// MarkAnalysisProcessing moves analysis to processing only while the transcript is completed.
	// It reports false when the gate did not hold.
	MarkAnalysisProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	// ResetStage moves a stage back to pending if its current status is one of from.
	ResetStage(ctx context.Context, id uuid.UUID, stage entities.Stage, from ...entities.StageStatus) (bool, error)

	// SaveAnalysis persists the whole result, its action items and analysis_status=completed atomically.
	SaveAnalysis(ctx context.Context, id uuid.UUID, result *entities.AnalysisResult) error
	// RecentCompleted returns completed meetings with a summary in the organization, newest first.
	RecentCompleted(ctx context.Context, organizationID, excludeID uuid.UUID, limit int) ([]*entities.Meeting, error)
}

// TranscriptRepository defines transcript segment persistence
type TranscriptRepository interface {
	// ReplaceForMeeting swaps any existing rows for segments in one transaction.
	ReplaceForMeeting(ctx context.Context, meetingID uuid.UUID, segments []*entities.Transcript) error
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.Transcript, error)
}

// ActionItemRepository defines action item reads
type ActionItemRepository interface {
	ListByMeeting(ctx context.Context, meetingID uuid.UUID, limit int) ([]*entities.ActionItem, error)
}

// KnowledgeRepository defines the organization-scoped knowledge graph store
type KnowledgeRepository interface {
	// Merge upserts nodes and inserts edges; duplicates are no-ops.
	Merge(ctx context.Context, organizationID, meetingID uuid.UUID, delta entities.KnowledgeDelta) error
	ListNodes(ctx context.Context, organizationID uuid.UUID) ([]*entities.KnowledgeNode, error)
	ListEdges(ctx context.Context, organizationID uuid.UUID) ([]*entities.KnowledgeEdge, error)
}
