package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/domain/repositories"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/notify"
	usecaseai "github.com/johnquangdev/meetingmind/internal/usecase/ai"
	"github.com/johnquangdev/meetingmind/pkg/jobcontext"
)

// priorSummaryLimit is how many earlier meetings of the organization feed the analysis prompt
const priorSummaryLimit = 3

// AnalysisDeps wires an AnalysisStage
type AnalysisDeps struct {
	Meetings    repositories.MeetingRepository
	Transcripts repositories.TranscriptRepository
	Analyzer    MeetingAnalyzer
	Enqueuer    *Enqueuer
	Progress    notify.ProgressPublisher
	// Relationships proposes knowledge graph edges; nil proposes none
	Relationships  usecaseai.RelationshipExtractor
	KnowledgeGraph bool
	Logger         *zap.Logger
}

// AnalysisStage runs the analysis engine over a completed transcript
type AnalysisStage struct {
	meetings       repositories.MeetingRepository
	transcripts    repositories.TranscriptRepository
	analyzer       MeetingAnalyzer
	enqueuer       *Enqueuer
	progress       notify.ProgressPublisher
	relationships  usecaseai.RelationshipExtractor
	knowledgeGraph bool
	logger         *zap.Logger
}

// NewAnalysisStage creates an AnalysisStage
func NewAnalysisStage(deps AnalysisDeps) *AnalysisStage {
	s := &AnalysisStage{
		meetings:       deps.Meetings,
		transcripts:    deps.Transcripts,
		analyzer:       deps.Analyzer,
		enqueuer:       deps.Enqueuer,
		progress:       deps.Progress,
		relationships:  deps.Relationships,
		knowledgeGraph: deps.KnowledgeGraph,
		logger:         deps.Logger,
	}
	if s.relationships == nil {
		s.relationships = usecaseai.NoRelationships
	}
	if s.progress == nil {
		s.progress = notify.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Run analyzes the meeting once its transcript is completed.
// It fails permanently with entities.ErrTranscriptNotReady, leaving analysis state untouched, when the transcript is not completed.
func (s *AnalysisStage) Run(ctx context.Context, meetingID uuid.UUID) error {
	_, err := s.run(ctx, meetingID)
	return err
}

func (s *AnalysisStage) run(ctx context.Context, meetingID uuid.UUID) (outcome, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return outcomeError, fmt.Errorf("failed to load meeting: %w", err)
	}
	if meeting == nil {
		return outcomeError, meetingNotFound(meetingID)
	}
	if meeting.AnalysisStatus == entities.StageStatusCompleted {
		s.logger.Info("⏭️ Analysis already completed", zap.String("meeting_id", meetingID.String()))
		return outcomeSkipped, nil
	}

	claimed, err := s.meetings.MarkAnalysisProcessing(ctx, meetingID)
	if err != nil {
		return outcomeError, fmt.Errorf("failed to mark analysis processing: %w", err)
	}
	if !claimed {
		s.logger.Warn("⚠️ Analysis requested before transcript completed",
			zap.String("meeting_id", meetingID.String()),
			zap.String("transcript_status", string(meeting.TranscriptStatus)),
		)
		return outcomeError, jobcontext.Permanent(fmt.Errorf("%w: meeting %s", entities.ErrTranscriptNotReady, meetingID))
	}

	if err := s.analyze(ctx, meeting); err != nil {
		s.fail(ctx, meetingID, err)
		return outcomeError, err
	}
	return outcomeSuccess, nil
}

func (s *AnalysisStage) analyze(ctx context.Context, meeting *entities.Meeting) error {
	start := time.Now()
	id := meeting.ID
	publish(ctx, s.progress, id, entities.StageAnalysis, entities.StageStatusProcessing, progressStarted, "analyzing transcript")

	segments, err := s.transcripts.ListByMeeting(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}

	recent, err := s.meetings.RecentCompleted(ctx, meeting.OrganizationID, id, priorSummaryLimit)
	if err != nil {
		return fmt.Errorf("failed to load prior meetings: %w", err)
	}
	prior := make([]string, 0, len(recent))
	for _, m := range recent {
		prior = append(prior, m.Summary)
	}

	result, err := s.analyzer.Analyze(ctx, segments, meeting.Title, prior)
	if err != nil {
		return err
	}
	result.KnowledgeDelta = usecaseai.ExtractKnowledgeDelta(result, s.relationships)

	if err := s.meetings.SaveAnalysis(ctx, id, result); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	publish(ctx, s.progress, id, entities.StageAnalysis, entities.StageStatusCompleted, progressDone, "")

	s.logger.Info("✅ Analysis completed",
		zap.String("meeting_id", id.String()),
		zap.Int("segments", len(segments)),
		zap.Int("prior_meetings", len(prior)),
		zap.Int("action_items", len(result.ActionItems)),
		zap.Duration("took", time.Since(start)),
	)

	if s.knowledgeGraph && !result.KnowledgeDelta.IsEmpty() {
		if _, err := s.enqueuer.EnqueueKnowledgeGraph(ctx, id, result.KnowledgeDelta); err != nil {
			s.logger.Error("❌ Failed to enqueue knowledge graph update",
				zap.String("meeting_id", id.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *AnalysisStage) fail(ctx context.Context, meetingID uuid.UUID, cause error) {
	wctx, cancel := detached(ctx)
	defer cancel()

	if err := s.meetings.UpdateAnalysisStatus(wctx, meetingID, entities.StageStatusFailed, errorMessage(cause)); err != nil {
		s.logger.Error("❌ Failed to record analysis failure",
			zap.String("meeting_id", meetingID.String()),
			zap.Error(err),
		)
	}
	publish(wctx, s.progress, meetingID, entities.StageAnalysis, entities.StageStatusFailed, 0, cause.Error())

	s.logger.Error("❌ Analysis failed",
		zap.String("meeting_id", meetingID.String()),
		zap.Bool("permanent", jobcontext.IsPermanent(cause)),
		zap.Error(cause),
	)
}
