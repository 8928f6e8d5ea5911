package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/domain/repositories"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/notify"
	"github.com/johnquangdev/meetingmind/pkg/ai"
	"github.com/johnquangdev/meetingmind/pkg/jobcontext"
)

// TranscriptionDeps wires a TranscriptionStage
type TranscriptionDeps struct {
	Meetings    repositories.MeetingRepository
	Transcripts repositories.TranscriptRepository
	Recordings  RecordingResolver
	// Enhancer is optional; when nil the raw recording is transcribed
	Enhancer    AudioEnhancer
	Transcriber ai.Transcriber
	Diarizer    ai.Diarizer
	Enqueuer    *Enqueuer
	Progress    notify.ProgressPublisher
	Language    string
	Logger      *zap.Logger
}

// TranscriptionStage turns a meeting's recording into stored transcript segments
type TranscriptionStage struct {
	meetings    repositories.MeetingRepository
	transcripts repositories.TranscriptRepository
	recordings  RecordingResolver
	enhancer    AudioEnhancer
	transcriber ai.Transcriber
	diarizer    ai.Diarizer
	enqueuer    *Enqueuer
	progress    notify.ProgressPublisher
	language    string
	logger      *zap.Logger
}

// NewTranscriptionStage creates a TranscriptionStage
func NewTranscriptionStage(deps TranscriptionDeps) *TranscriptionStage {
	s := &TranscriptionStage{
		meetings:    deps.Meetings,
		transcripts: deps.Transcripts,
		recordings:  deps.Recordings,
		enhancer:    deps.Enhancer,
		transcriber: deps.Transcriber,
		diarizer:    deps.Diarizer,
		enqueuer:    deps.Enqueuer,
		progress:    deps.Progress,
		language:    deps.Language,
		logger:      deps.Logger,
	}
	if s.diarizer == nil {
		s.diarizer = ai.NopDiarizer{}
	}
	if s.progress == nil {
		s.progress = notify.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Run transcribes the meeting and hands it to analysis.
// A completed transcript is not redone; analysis is enqueued again if it never started.
func (s *TranscriptionStage) Run(ctx context.Context, meetingID uuid.UUID) error {
	_, err := s.run(ctx, meetingID)
	return err
}

func (s *TranscriptionStage) run(ctx context.Context, meetingID uuid.UUID) (outcome, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return outcomeError, fmt.Errorf("failed to load meeting: %w", err)
	}
	if meeting == nil {
		return outcomeError, meetingNotFound(meetingID)
	}

	if meeting.TranscriptStatus == entities.StageStatusCompleted {
		s.logger.Info("⏭️ Transcript already completed",
			zap.String("meeting_id", meetingID.String()),
			zap.String("analysis_status", string(meeting.AnalysisStatus)),
		)
		if meeting.AnalysisStatus == entities.StageStatusPending {
			if _, err := s.enqueuer.EnqueueAnalysis(ctx, meetingID); err != nil {
				return outcomeError, err
			}
		}
		return outcomeSkipped, nil
	}

	if err := s.transcribe(ctx, meeting); err != nil {
		s.fail(ctx, meetingID, err)
		return outcomeError, err
	}
	return outcomeSuccess, nil
}

func (s *TranscriptionStage) transcribe(ctx context.Context, meeting *entities.Meeting) error {
	start := time.Now()
	id := meeting.ID

	if err := s.meetings.UpdateTranscriptStatus(ctx, id, entities.StageStatusProcessing, nil); err != nil {
		return fmt.Errorf("failed to mark transcript processing: %w", err)
	}
	if err := s.meetings.UpdateMeetingStatus(ctx, id, entities.MeetingStatusInProgress); err != nil {
		return fmt.Errorf("failed to mark meeting in progress: %w", err)
	}
	publish(ctx, s.progress, id, entities.StageTranscription, entities.StageStatusProcessing, progressStarted, "downloading recording")

	if meeting.RecordingURL == "" {
		return jobcontext.Permanent(fmt.Errorf("%w: meeting has no recording", entities.ErrUnsupportedRecordingURL))
	}
	rec, err := s.recordings.Resolve(ctx, meeting.RecordingURL)
	if err != nil {
		if errors.Is(err, entities.ErrUnsupportedRecordingURL) || errors.Is(err, entities.ErrRecordingTooLarge) {
			return jobcontext.Permanent(err)
		}
		return fmt.Errorf("failed to fetch recording: %w", err)
	}
	defer rec.Close()
	publish(ctx, s.progress, id, entities.StageTranscription, entities.StageStatusProcessing, progressDownloaded, "transcribing")

	audioPath := rec.Path
	if s.enhancer != nil {
		enhanced, cleanup, err := s.enhancer.Enhance(ctx, rec.Path)
		if err != nil {
			s.logger.Warn("⚠️ Noise reduction failed, using raw audio",
				zap.String("meeting_id", id.String()),
				zap.Error(err),
			)
		} else {
			defer cleanup()
			audioPath = enhanced
		}
	}

	segments, err := s.transcriber.Transcribe(ctx, audioPath, ai.TranscribeOptions{Language: s.language})
	if err != nil {
		return err
	}
	publish(ctx, s.progress, id, entities.StageTranscription, entities.StageStatusProcessing, progressTranscribed, "assigning speakers")

	segments = s.diarizer.AssignSpeakers(ctx, audioPath, segments)
	publish(ctx, s.progress, id, entities.StageTranscription, entities.StageStatusProcessing, progressDiarized, "saving transcript")

	rows := transcriptRows(id, segments)
	if len(rows) == 0 {
		s.logger.Warn("⚠️ Recording produced no speech",
			zap.String("meeting_id", id.String()),
		)
	}
	if err := s.transcripts.ReplaceForMeeting(ctx, id, rows); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	if err := s.meetings.UpdateTranscriptStatus(ctx, id, entities.StageStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to mark transcript completed: %w", err)
	}
	publish(ctx, s.progress, id, entities.StageTranscription, entities.StageStatusCompleted, progressDone, "")

	s.logger.Info("✅ Transcription completed",
		zap.String("meeting_id", id.String()),
		zap.Int("segments", len(rows)),
		zap.Duration("took", time.Since(start)),
	)

	// A failure here is retried; the completed gate keeps the transcript from being redone.
	if _, err := s.enqueuer.EnqueueAnalysis(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *TranscriptionStage) fail(ctx context.Context, meetingID uuid.UUID, cause error) {
	wctx, cancel := detached(ctx)
	defer cancel()

	if err := s.meetings.UpdateTranscriptStatus(wctx, meetingID, entities.StageStatusFailed, errorMessage(cause)); err != nil {
		s.logger.Error("❌ Failed to record transcription failure",
			zap.String("meeting_id", meetingID.String()),
			zap.Error(err),
		)
	}
	publish(wctx, s.progress, meetingID, entities.StageTranscription, entities.StageStatusFailed, 0, cause.Error())

	s.logger.Error("❌ Transcription failed",
		zap.String("meeting_id", meetingID.String()),
		zap.Bool("permanent", jobcontext.IsPermanent(cause)),
		zap.Error(cause),
	)
}

// transcriptRows orders segments by start time and numbers them
func transcriptRows(meetingID uuid.UUID, segments []ai.Segment) []*entities.Transcript {
	sorted := make([]ai.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	rows := make([]*entities.Transcript, 0, len(sorted))
	for _, seg := range sorted {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		rows = append(rows, entities.NewTranscript(meetingID, len(rows), seg.Speaker, text, seg.Start, seg.End, seg.Confidence))
	}
	return rows
}
