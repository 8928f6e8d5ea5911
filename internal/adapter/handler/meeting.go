package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/errors"
	"github.com/johnquangdev/meetingmind/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetingmind/internal/adapter/presenter"
	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/domain/repositories"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
	aiuse "github.com/johnquangdev/meetingmind/internal/usecase/ai"
	"github.com/johnquangdev/meetingmind/internal/usecase/pipeline"
)

// statusDeadLetterScan bounds how many dead letters are searched for a meeting's status
const statusDeadLetterScan = 200

// Assistant generates the on-demand LLM artifacts
type Assistant interface {
	GeneratePreMeetingBrief(ctx context.Context, title string, participants []string, prior []aiuse.PriorMeeting) (string, error)
	GenerateQuiz(ctx context.Context, transcriptText string, n int) ([]aiuse.QuizQuestion, error)
}

// MeetingDeps wires a Meeting handler
type MeetingDeps struct {
	Meetings    repositories.MeetingRepository
	Transcripts repositories.TranscriptRepository
	ActionItems repositories.ActionItemRepository
	Enqueuer    *pipeline.Enqueuer
	Queue       queue.Queue
	Assistant   Assistant
	Logger      *zap.Logger
}

// Meeting handles the per-meeting operator endpoints
type Meeting struct {
	meetings    repositories.MeetingRepository
	transcripts repositories.TranscriptRepository
	actionItems repositories.ActionItemRepository
	enqueuer    *pipeline.Enqueuer
	queue       queue.Queue
	assistant   Assistant
	logger      *zap.Logger
}

// NewMeeting creates a new meeting handler
func NewMeeting(deps MeetingDeps) *Meeting {
	return &Meeting{
		meetings:    deps.Meetings,
		transcripts: deps.Transcripts,
		actionItems: deps.ActionItems,
		enqueuer:    deps.Enqueuer,
		queue:       deps.Queue,
		assistant:   deps.Assistant,
		logger:      deps.Logger,
	}
}

// Status returns the pipeline state of a meeting
// GET /v1/meetings/:id/status
func (h *Meeting) Status(c echo.Context) error {
	ctx := c.Request().Context()

	m, err := h.loadMeeting(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	dead, err := h.queue.DeadLetters(ctx, statusDeadLetterScan)
	if err != nil {
		// the status itself is still useful without the dead letters
		if h.logger != nil {
			h.logger.Warn("⚠️ Failed to read dead letters", zap.Error(err))
		}
		dead = nil
	}

	return HandleSuccess(h.logger, c, presenter.ToStatusResponse(m, dead))
}

// Transcribe re-enqueues transcription for a meeting
// POST /v1/meetings/:id/transcribe?force=true
func (h *Meeting) Transcribe(c echo.Context) error {
	ctx := c.Request().Context()

	var req meeting.TriggerStageRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload(err))
	}

	m, err := h.loadMeeting(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	wasCompleted := m.TranscriptStatus == entities.StageStatusCompleted
	if err := h.resetStage(ctx, m, entities.StageTranscription, req.Force); err != nil {
		return HandleError(h.logger, c, err)
	}
	// a forced re-transcription invalidates the analysis built on the old transcript
	if wasCompleted {
		if _, err := h.meetings.ResetStage(ctx, m.ID, entities.StageAnalysis,
			entities.StageStatusCompleted, entities.StageStatusFailed); err != nil {
			return HandleError(h.logger, c, errors.ErrInternal(err))
		}
	}

	job, err := h.enqueuer.EnqueueTranscription(ctx, m.ID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrQueueUnavailable(err))
	}
	return HandleSuccessWithStatus(h.logger, c, http.StatusAccepted, presenter.ToEnqueueResponse(job))
}

// Analyze re-enqueues analysis for a meeting whose transcript is completed
// POST /v1/meetings/:id/analyze?force=true
func (h *Meeting) Analyze(c echo.Context) error {
	ctx := c.Request().Context()

	var req meeting.TriggerStageRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload(err))
	}

	m, err := h.loadMeeting(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if !m.TranscriptReady() {
		return HandleError(h.logger, c, errors.ErrTranscriptNotReady(m.ID.String()))
	}

	if err := h.resetStage(ctx, m, entities.StageAnalysis, req.Force); err != nil {
		return HandleError(h.logger, c, err)
	}

	job, err := h.enqueuer.EnqueueAnalysis(ctx, m.ID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrQueueUnavailable(err))
	}
	return HandleSuccessWithStatus(h.logger, c, http.StatusAccepted, presenter.ToEnqueueResponse(job))
}

// Quiz generates comprehension questions from a meeting's transcript
// POST /v1/meetings/:id/quiz
func (h *Meeting) Quiz(c echo.Context) error {
	ctx := c.Request().Context()

	var req meeting.QuizRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	m, err := h.loadMeeting(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if !m.TranscriptReady() {
		return HandleError(h.logger, c, errors.ErrTranscriptNotReady(m.ID.String()))
	}

	segments, err := h.transcripts.ListByMeeting(ctx, m.ID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInternal(err))
	}

	questions, err := h.assistant.GenerateQuiz(ctx, aiuse.FormatTranscript(segments), req.Count)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrLLMUnavailable(err))
	}
	return HandleSuccess(h.logger, c, presenter.ToQuizResponse(m.ID, questions))
}

// Brief generates a pre-meeting brief from the organization's recent meetings
// POST /v1/briefs
func (h *Meeting) Brief(c echo.Context) error {
	ctx := c.Request().Context()

	var req meeting.BriefRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("organization_id must be a valid UUID"))
	}

	prior, err := aiuse.LoadPriorMeetings(ctx, h.meetings, h.actionItems, orgID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInternal(err))
	}

	brief, err := h.assistant.GeneratePreMeetingBrief(ctx, req.Title, req.Participants, prior)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrLLMUnavailable(err))
	}
	return HandleSuccess(h.logger, c, &meeting.BriefResponse{
		Brief:         brief,
		PriorMeetings: len(prior),
	})
}

func (h *Meeting) loadMeeting(c echo.Context) (*entities.Meeting, error) {
	id, err := parseMeetingID(c)
	if err != nil {
		return nil, err
	}
	m, err := h.meetings.GetMeeting(c.Request().Context(), id)
	if err != nil {
		return nil, errors.ErrInternal(err)
	}
	if m == nil {
		return nil, errors.ErrMeetingNotFound(id.String())
	}
	return m, nil
}

// resetStage moves a stage back to pending so a new job can claim it.
// Failed stages always reset; processing and completed stages only with force.
func (h *Meeting) resetStage(ctx context.Context, m *entities.Meeting, stage entities.Stage, force bool) error {
	status := m.StageStatusFor(stage)

	switch status {
	case entities.StageStatusPending:
		return nil
	case entities.StageStatusFailed:
	case entities.StageStatusProcessing, entities.StageStatusCompleted:
		if !force {
			return errors.ErrStageConflict(string(stage), string(status))
		}
	default:
		return errors.ErrStageConflict(string(stage), string(status))
	}

	ok, err := h.meetings.ResetStage(ctx, m.ID, stage, status)
	if err != nil {
		return errors.ErrInternal(err)
	}
	if !ok {
		// another writer moved the stage since it was read
		return errors.ErrStageConflict(string(stage), "changed concurrently")
	}

	if h.logger != nil {
		h.logger.Info("🔄 Stage reset to pending",
			zap.String("meeting_id", m.ID.String()),
			zap.String("stage", string(stage)),
			zap.String("from", string(status)),
			zap.Bool("force", force),
		)
	}
	return nil
}
