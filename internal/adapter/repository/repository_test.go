package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive across calls
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Meeting{},
		&entities.Transcript{},
		&entities.ActionItem{},
		&entities.KnowledgeNode{},
		&entities.KnowledgeEdge{},
	))
	return db
}

func createMeeting(t *testing.T, repo *MeetingRepository, org uuid.UUID) *entities.Meeting {
	t.Helper()
	m := entities.NewMeeting(org, "Weekly sync", "s3://recordings/weekly.wav")
	require.NoError(t, repo.CreateMeeting(context.Background(), m))
	return m
}

func TestMeetingRepository_GetMeetingMissing(t *testing.T) {
	repo := NewMeetingRepository(newTestDB(t))

	m, err := repo.GetMeeting(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMeetingRepository_StageTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMeetingRepository(newTestDB(t))
	m := createMeeting(t, repo, uuid.New())

	msg := "backend unreachable"
	require.NoError(t, repo.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusFailed, &msg))

	got, err := repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageStatusFailed, got.TranscriptStatus)
	require.NotNil(t, got.LastError)
	assert.Equal(t, msg, *got.LastError)

	err = repo.UpdateAnalysisStatus(ctx, m.ID, entities.StageStatus("bogus"), nil)
	assert.Error(t, err)
}

func TestMeetingRepository_MarkAnalysisProcessingGate(t *testing.T) {
	ctx := context.Background()
	repo := NewMeetingRepository(newTestDB(t))
	m := createMeeting(t, repo, uuid.New())

	ok, err := repo.MarkAnalysisProcessing(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, ok, "gate must hold while transcript is pending")

	got, err := repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageStatusPending, got.AnalysisStatus)

	require.NoError(t, repo.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusCompleted, nil))
	ok, err = repo.MarkAnalysisProcessing(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageStatusProcessing, got.AnalysisStatus)
}

func TestMeetingRepository_ResetStage(t *testing.T) {
	ctx := context.Background()
	repo := NewMeetingRepository(newTestDB(t))
	m := createMeeting(t, repo, uuid.New())

	require.NoError(t, repo.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusCompleted, nil))

	ok, err := repo.ResetStage(ctx, m.ID, entities.StageTranscription, entities.StageStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ResetStage(ctx, m.ID, entities.StageTranscription, entities.StageStatusFailed, entities.StageStatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageStatusPending, got.TranscriptStatus)

	_, err = repo.ResetStage(ctx, m.ID, entities.StageKnowledgeGraph, entities.StageStatusFailed)
	assert.Error(t, err)
}

func TestMeetingRepository_SaveAnalysis(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewMeetingRepository(db)
	items := NewActionItemRepository(db)
	m := createMeeting(t, repo, uuid.New())

	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	result := &entities.AnalysisResult{
		Summary:   "Agreed to ship v2",
		KeyTopics: []string{"release", "budget"},
		ActionItems: []entities.ActionItemResult{
			{Task: "Write release notes", Assignee: "Alice", DueDate: &due, Priority: entities.ActionItemPriorityLow},
			{Task: "Book the launch call", Assignee: "Bob", Priority: entities.ActionItemPriorityHigh},
		},
		Sentiment:         entities.Sentiment{Score: 0.8, Label: entities.SentimentPositive},
		TalkTime:          map[string]float64{"Alice": 83.33, "Bob": 16.67},
		KeyMoments:        []entities.KeyMoment{},
		Decisions:         []string{"Ship v2"},
		FollowUpQuestions: []string{},
		Risks:             []string{},
	}
	require.NoError(t, repo.SaveAnalysis(ctx, m.ID, result))
	// a redelivered run must not duplicate action items
	require.NoError(t, repo.SaveAnalysis(ctx, m.ID, result))

	got, err := repo.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agreed to ship v2", got.Summary)
	assert.Equal(t, []string{"release", "budget"}, []string(got.KeyTopics))
	require.NotNil(t, got.SentimentScore)
	assert.InDelta(t, 0.8, *got.SentimentScore, 1e-9)
	assert.Equal(t, entities.SentimentPositive, got.SentimentLabel)
	assert.Equal(t, entities.StageStatusCompleted, got.AnalysisStatus)
	assert.Equal(t, entities.MeetingStatusCompleted, got.Status)
	assert.Equal(t, 83.33, got.Insights.Data().TalkTime["Alice"])
	assert.Equal(t, []string{"Ship v2"}, got.Insights.Data().Decisions)

	list, err := items.ListByMeeting(ctx, m.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Book the launch call", list[0].Task, "high priority sorts first")
	for _, it := range list {
		assert.Equal(t, entities.ActionItemStatusPending, it.Status)
	}
}

func TestMeetingRepository_SaveAnalysisMissingMeeting(t *testing.T) {
	repo := NewMeetingRepository(newTestDB(t))

	err := repo.SaveAnalysis(context.Background(), uuid.New(), &entities.AnalysisResult{Summary: "x"})
	assert.ErrorIs(t, err, entities.ErrMeetingNotFound)
}

func TestMeetingRepository_RecentCompleted(t *testing.T) {
	ctx := context.Background()
	repo := NewMeetingRepository(newTestDB(t))
	org := uuid.New()

	self := createMeeting(t, repo, org)
	var done []*entities.Meeting
	for i := 0; i < 4; i++ {
		m := entities.NewMeeting(org, "Past", "")
		m.CreatedAt = time.Now().Add(time.Duration(-i-1) * time.Hour)
		require.NoError(t, repo.CreateMeeting(ctx, m))
		require.NoError(t, repo.UpdateTranscriptStatus(ctx, m.ID, entities.StageStatusCompleted, nil))
		require.NoError(t, repo.SaveAnalysis(ctx, m.ID, &entities.AnalysisResult{Summary: "summary"}))
		done = append(done, m)
	}
	// other organization and empty summary are both excluded
	other := createMeeting(t, repo, uuid.New())
	require.NoError(t, repo.SaveAnalysis(ctx, other.ID, &entities.AnalysisResult{Summary: "elsewhere"}))
	empty := createMeeting(t, repo, org)
	require.NoError(t, repo.UpdateMeetingStatus(ctx, empty.ID, entities.MeetingStatusCompleted))
	require.NoError(t, repo.SaveAnalysis(ctx, self.ID, &entities.AnalysisResult{Summary: "self"}))

	got, err := repo.RecentCompleted(ctx, org, self.ID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, m := range got {
		assert.Equal(t, done[i].ID, m.ID)
	}
}

func TestTranscriptRepository_ReplaceAndOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTranscriptRepository(db)
	meetingID := uuid.New()

	first := []*entities.Transcript{
		entities.NewTranscript(meetingID, 0, "Alice", "stale", 0, 1, 0.9),
	}
	require.NoError(t, repo.ReplaceForMeeting(ctx, meetingID, first))

	second := []*entities.Transcript{
		entities.NewTranscript(meetingID, 0, "Bob", "later", 5, 6, 0.9),
		entities.NewTranscript(meetingID, 1, "", "tie one", 2, 3, 0.9),
		entities.NewTranscript(meetingID, 2, "Alice", "tie two", 2, 4, 0.9),
	}
	require.NoError(t, repo.ReplaceForMeeting(ctx, meetingID, second))

	got, err := repo.ListByMeeting(ctx, meetingID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "tie one", got[0].Text)
	assert.Equal(t, entities.UnknownSpeaker, got[0].SpeakerName)
	assert.Equal(t, "tie two", got[1].Text)
	assert.Equal(t, "later", got[2].Text)
}

func TestKnowledgeRepository_MergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewKnowledgeRepository(newTestDB(t))
	org := uuid.New()
	meetingID := uuid.New()

	budget := entities.Entity{Name: "Budget", Type: entities.EntityTypeTopic}
	hiring := entities.Entity{Name: "Hiring", Type: entities.EntityTypeTopic}
	delta := entities.KnowledgeDelta{
		Entities: []entities.Entity{budget, hiring},
		Relationships: []entities.Relationship{
			{Source: budget, Target: hiring, Type: "affects"},
		},
	}

	require.NoError(t, repo.Merge(ctx, org, meetingID, delta))
	require.NoError(t, repo.Merge(ctx, org, uuid.New(), delta))

	nodes, err := repo.ListNodes(ctx, org)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Budget", nodes[0].Name)
	assert.Equal(t, meetingID.String(), nodes[0].Metadata["first_meeting_id"])

	edges, err := repo.ListEdges(ctx, org)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, entities.DefaultEdgeStrength, edges[0].Strength)
	assert.Equal(t, meetingID, edges[0].MeetingID)
}

func TestKnowledgeRepository_MergeScopesByOrganization(t *testing.T) {
	ctx := context.Background()
	repo := NewKnowledgeRepository(newTestDB(t))
	delta := entities.KnowledgeDelta{Entities: []entities.Entity{{Name: "Budget", Type: entities.EntityTypeTopic}}}

	orgA, orgB := uuid.New(), uuid.New()
	require.NoError(t, repo.Merge(ctx, orgA, uuid.New(), delta))
	require.NoError(t, repo.Merge(ctx, orgB, uuid.New(), delta))

	a, err := repo.ListNodes(ctx, orgA)
	require.NoError(t, err)
	b, err := repo.ListNodes(ctx, orgB)
	require.NoError(t, err)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

func TestKnowledgeRepository_MergeSkipsBlankEntities(t *testing.T) {
	ctx := context.Background()
	repo := NewKnowledgeRepository(newTestDB(t))
	org := uuid.New()

	delta := entities.KnowledgeDelta{
		Entities: []entities.Entity{{Name: "  ", Type: entities.EntityTypeTopic}},
		Relationships: []entities.Relationship{
			{Source: entities.Entity{Name: "A", Type: "topic"}, Target: entities.Entity{Name: "", Type: "topic"}, Type: "relates"},
		},
	}
	require.NoError(t, repo.Merge(ctx, org, uuid.New(), delta))

	nodes, err := repo.ListNodes(ctx, org)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	edges, err := repo.ListEdges(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, edges)
}
