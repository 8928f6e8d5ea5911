package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/pkg/ai"
	"github.com/johnquangdev/meetingmind/pkg/jobcontext"
)

func TestTranscriptionStage_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.createMeeting(uuid.New())

	require.NoError(t, f.transcriptionStage(nil).Run(ctx, m.ID))

	got := f.reload(m.ID)
	assert.Equal(t, entities.StageStatusCompleted, got.TranscriptStatus)
	assert.Equal(t, entities.StageStatusPending, got.AnalysisStatus)
	assert.Equal(t, entities.MeetingStatusInProgress, got.Status)
	assert.Nil(t, got.LastError)

	rows, err := f.transcripts.ListByMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank segments are dropped")
	assert.Equal(t, "Let's start.", rows[0].Text)
	assert.Equal(t, "Ana", rows[0].SpeakerName)
	assert.Equal(t, 0, rows[0].Sequence)
	assert.Equal(t, "Second point.", rows[1].Text)
	assert.Equal(t, 1, rows[1].Sequence)

	jobs := f.claimAll()
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.JobNameAnalyze, jobs[0].Name)
	assert.Equal(t, m.ID, jobs[0].MeetingID)

	_, statErr := os.Stat(f.resolver.lastPath())
	assert.True(t, os.IsNotExist(statErr), "downloaded recording is removed")

	events := f.events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, entities.StageTranscription, last.Stage)
	assert.Equal(t, entities.StageStatusCompleted, last.Status)
	assert.Equal(t, 1.0, last.Progress)
}

func TestTranscriptionStage_CompletedGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.createMeeting(uuid.New())
	require.NoError(t, f.meetings.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusCompleted, nil))

	stage := f.transcriptionStage(nil)
	require.NoError(t, stage.Run(ctx, m.ID))
	assert.Zero(t, f.transcriber.callCount())

	jobs := f.claimAll()
	require.Len(t, jobs, 1, "analysis is re-enqueued while it has not started")
	assert.Equal(t, entities.JobNameAnalyze, jobs[0].Name)

	require.NoError(t, f.meetings.UpdateAnalysisStatus(ctx, m.ID, entities.StageStatusCompleted, nil))
	require.NoError(t, stage.Run(ctx, m.ID))
	assert.Empty(t, f.claimAll())
}

func TestTranscriptionStage_RedeliveryReplacesSegments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.createMeeting(uuid.New())
	stage := f.transcriptionStage(nil)

	// a previous attempt crashed after writing rows but before completing
	require.NoError(t, f.transcripts.ReplaceForMeeting(ctx, m.ID, []*entities.Transcript{
		entities.NewTranscript(m.ID, 0, "Old", "stale", 0, 1, 1),
	}))
	require.NoError(t, f.meetings.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusProcessing, nil))

	require.NoError(t, stage.Run(ctx, m.ID))

	rows, err := f.transcripts.ListByMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotEqual(t, "stale", row.Text)
	}
}

func TestTranscriptionStage_TranscriberFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.createMeeting(uuid.New())
	f.transcriber.err = &ai.TranscriptionError{Backend: "openai", Op: "request", Err: errors.New("connection reset")}

	err := f.transcriptionStage(nil).Run(ctx, m.ID)
	require.Error(t, err)
	assert.False(t, jobcontext.IsPermanent(err))

	var tErr *ai.TranscriptionError
	assert.ErrorAs(t, err, &tErr)

	got := f.reload(m.ID)
	assert.Equal(t, entities.StageStatusFailed, got.TranscriptStatus)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "connection reset")
	assert.Empty(t, f.claimAll(), "analysis is not enqueued after a failure")

	_, statErr := os.Stat(f.resolver.lastPath())
	assert.True(t, os.IsNotExist(statErr))

	events := f.events()
	require.NotEmpty(t, events)
	assert.Equal(t, entities.StageStatusFailed, events[len(events)-1].Status)
}

func TestTranscriptionStage_PermanentFailures(t *testing.T) {
	t.Run("missing meeting", func(t *testing.T) {
		f := newFixture(t)
		err := f.transcriptionStage(nil).Run(context.Background(), uuid.New())
		require.Error(t, err)
		assert.True(t, jobcontext.IsPermanent(err))
		assert.ErrorIs(t, err, entities.ErrMeetingNotFound)
	})

	t.Run("unsupported recording", func(t *testing.T) {
		f := newFixture(t)
		m := f.createMeeting(uuid.New())
		f.resolver.err = entities.ErrUnsupportedRecordingURL

		err := f.transcriptionStage(nil).Run(context.Background(), m.ID)
		require.Error(t, err)
		assert.True(t, jobcontext.IsPermanent(err))
		assert.Equal(t, entities.StageStatusFailed, f.reload(m.ID).TranscriptStatus)
	})

	t.Run("recording too large", func(t *testing.T) {
		f := newFixture(t)
		m := f.createMeeting(uuid.New())
		f.resolver.err = entities.ErrRecordingTooLarge

		err := f.transcriptionStage(nil).Run(context.Background(), m.ID)
		assert.True(t, jobcontext.IsPermanent(err))
	})
}

func TestTranscriptionStage_Enhancer(t *testing.T) {
	t.Run("enhanced audio is transcribed and cleaned up", func(t *testing.T) {
		f := newFixture(t)
		m := f.createMeeting(uuid.New())
		enhancer := &fakeEnhancer{out: "/tmp/enhanced.wav"}

		require.NoError(t, f.transcriptionStage(enhancer).Run(context.Background(), m.ID))
		assert.Equal(t, []string{"/tmp/enhanced.wav"}, f.transcriber.paths)
		assert.True(t, enhancer.cleaned)
	})

	t.Run("enhancer failure falls back to raw audio", func(t *testing.T) {
		f := newFixture(t)
		m := f.createMeeting(uuid.New())
		enhancer := &fakeEnhancer{err: errors.New("ffmpeg missing")}

		require.NoError(t, f.transcriptionStage(enhancer).Run(context.Background(), m.ID))
		require.Len(t, f.transcriber.paths, 1)
		assert.Equal(t, f.resolver.lastPath(), f.transcriber.paths[0])
	})
}

func completeTranscript(t *testing.T, f *fixture, m *entities.Meeting) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.transcripts.ReplaceForMeeting(ctx, m.ID, []*entities.Transcript{
		entities.NewTranscript(m.ID, 0, "Ana", "We ship Friday.", 0, 30, 0.9),
		entities.NewTranscript(m.ID, 1, "Ben", "Agreed.", 30, 40, 0.9),
	}))
	require.NoError(t, f.meetings.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusCompleted, nil))
}

func TestAnalysisStage_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := uuid.New()

	earlier := f.createMeeting(org)
	completeTranscript(t, f, earlier)
	require.NoError(t, f.meetings.SaveAnalysis(ctx, earlier.ID, &entities.AnalysisResult{
		Summary:   "Kickoff happened.",
		Sentiment: entities.Sentiment{Score: 0.5, Label: entities.SentimentNeutral},
	}))

	m := f.createMeeting(org)
	completeTranscript(t, f, m)

	require.NoError(t, f.analysisStage(true).Run(ctx, m.ID))

	got := f.reload(m.ID)
	assert.Equal(t, entities.StageStatusCompleted, got.AnalysisStatus)
	assert.Equal(t, entities.MeetingStatusCompleted, got.Status)
	assert.Equal(t, "Agreed to ship on Friday.", got.Summary)
	assert.Equal(t, map[string]float64{"Ana": 75, "Ben": 25}, got.Insights.Data().TalkTime)
	assert.Equal(t, []string{"Kickoff happened."}, f.analyzer.prior)

	var items []entities.ActionItem
	require.NoError(t, f.db.Where("meeting_id = ?", m.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "Cut the release branch", items[0].Task)
	assert.Equal(t, entities.ActionItemStatusPending, items[0].Status)

	jobs := f.claimAll()
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.JobNameUpdateKnowledgeGraph, jobs[0].Name)
	require.NotNil(t, jobs[0].Delta)
	assert.ElementsMatch(t, []entities.Entity{
		{Name: "Release", Type: entities.EntityTypeTopic},
		{Name: "Ship on Friday", Type: entities.EntityTypeDecision},
	}, jobs[0].Delta.Entities)
}

func TestAnalysisStage_KnowledgeGraphDisabled(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(uuid.New())
	completeTranscript(t, f, m)

	require.NoError(t, f.analysisStage(false).Run(context.Background(), m.ID))
	assert.Empty(t, f.claimAll())
}

func TestAnalysisStage_TranscriptNotReady(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(uuid.New())

	err := f.analysisStage(true).Run(context.Background(), m.ID)
	require.Error(t, err)
	assert.True(t, jobcontext.IsPermanent(err))
	assert.ErrorIs(t, err, entities.ErrTranscriptNotReady)

	got := f.reload(m.ID)
	assert.Equal(t, entities.StageStatusPending, got.AnalysisStatus, "analysis state is left untouched")
	assert.Nil(t, got.LastError)
	assert.Zero(t, f.analyzer.calls)
}

func TestAnalysisStage_AlreadyCompleted(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(uuid.New())
	completeTranscript(t, f, m)
	stage := f.analysisStage(true)

	require.NoError(t, stage.Run(context.Background(), m.ID))
	f.claimAll()
	require.NoError(t, stage.Run(context.Background(), m.ID))
	assert.Equal(t, 1, f.analyzer.calls)
}

func TestAnalysisStage_AnalyzerFailure(t *testing.T) {
	f := newFixture(t)
	m := f.createMeeting(uuid.New())
	completeTranscript(t, f, m)
	f.analyzer.err = &ai.LLMCallError{Provider: "openai", StatusCode: 503, Err: errors.New("overloaded")}

	err := f.analysisStage(true).Run(context.Background(), m.ID)
	require.Error(t, err)
	assert.False(t, jobcontext.IsPermanent(err))

	got := f.reload(m.ID)
	assert.Equal(t, entities.StageStatusFailed, got.AnalysisStatus)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "overloaded")
}

func TestKnowledgeGraphStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := uuid.New()
	m := f.createMeeting(org)

	delta := entities.KnowledgeDelta{
		Entities: []entities.Entity{
			{Name: "Release", Type: entities.EntityTypeTopic},
			{Name: "Ship on Friday", Type: entities.EntityTypeDecision},
		},
		Relationships: []entities.Relationship{{
			Source: entities.Entity{Name: "Ship on Friday", Type: entities.EntityTypeDecision},
			Target: entities.Entity{Name: "Release", Type: entities.EntityTypeTopic},
			Type:   "about",
		}},
	}

	stage := f.knowledgeStage()
	require.NoError(t, stage.Run(ctx, m.ID, delta))
	require.NoError(t, stage.Run(ctx, m.ID, delta), "merging the same delta twice is a no-op")

	nodes, err := f.knowledge.ListNodes(ctx, org)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	edges, err := f.knowledge.ListEdges(ctx, org)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestKnowledgeGraphStage_NeverFails(t *testing.T) {
	f := newFixture(t)
	delta := entities.KnowledgeDelta{Entities: []entities.Entity{{Name: "X", Type: entities.EntityTypeTopic}}}

	assert.NoError(t, f.knowledgeStage().Run(context.Background(), uuid.New(), delta))
	assert.Equal(t, outcomeError, f.knowledgeStage().run(context.Background(), uuid.New(), delta))
	assert.Equal(t, outcomeSkipped, f.knowledgeStage().run(context.Background(), uuid.New(), entities.KnowledgeDelta{}))
}
