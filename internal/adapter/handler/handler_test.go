package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/johnquangdev/meetingmind/errors"
	"github.com/johnquangdev/meetingmind/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetingmind/internal/adapter/repository"
	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/metrics"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
	aiuse "github.com/johnquangdev/meetingmind/internal/usecase/ai"
	"github.com/johnquangdev/meetingmind/internal/usecase/pipeline"
	pkgvalidator "github.com/johnquangdev/meetingmind/pkg/validator"
)

type stubAssistant struct {
	brief     string
	questions []aiuse.QuizQuestion
	err       error

	prior     []aiuse.PriorMeeting
	quizCount int
	quizText  string
}

func (s *stubAssistant) GeneratePreMeetingBrief(_ context.Context, _ string, _ []string, prior []aiuse.PriorMeeting) (string, error) {
	s.prior = prior
	return s.brief, s.err
}

func (s *stubAssistant) GenerateQuiz(_ context.Context, text string, n int) ([]aiuse.QuizQuestion, error) {
	s.quizText = text
	s.quizCount = n
	return s.questions, s.err
}

type failingBucket struct{}

func (failingBucket) CheckBucket(context.Context) error { return errors.New("bucket missing") }

type testServer struct {
	t           *testing.T
	echo        *echo.Echo
	meetings    *repository.MeetingRepository
	transcripts *repository.TranscriptRepository
	queue       *queue.MemoryQueue
	assistant   *stubAssistant
	metrics     *metrics.PipelineMetrics
}

type envelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

func newTestServer(t *testing.T, storage BucketChecker) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&entities.Meeting{},
		&entities.Transcript{},
		&entities.ActionItem{},
	))

	q := queue.NewMemoryQueue(queue.Options{Name: "test"})
	meetings := repository.NewMeetingRepository(db)
	transcripts := repository.NewTranscriptRepository(db)
	assistant := &stubAssistant{brief: "Review the launch checklist."}
	log := zap.NewNop()

	reg := prometheus.NewRegistry()
	pm := metrics.NewPipelineMetrics(reg)

	e := echo.New()
	e.Validator = pkgvalidator.New()
	NewRouter(
		NewMeeting(MeetingDeps{
			Meetings:    meetings,
			Transcripts: transcripts,
			ActionItems: repository.NewActionItemRepository(db),
			Enqueuer:    pipeline.NewEnqueuer(q, log),
			Queue:       q,
			Assistant:   assistant,
			Logger:      log,
		}),
		NewOps(sqlDB, q, storage, log),
		reg,
	).Setup(e)

	return &testServer{
		t:           t,
		echo:        e,
		meetings:    meetings,
		transcripts: transcripts,
		queue:       q,
		assistant:   assistant,
		metrics:     pm,
	}
}

func (s *testServer) do(method, path, body string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) createMeeting(org uuid.UUID, transcript, analysis entities.StageStatus) *entities.Meeting {
	s.t.Helper()
	ctx := context.Background()
	m := entities.NewMeeting(org, "Launch sync", "s3://recordings/launch.wav")
	require.NoError(s.t, s.meetings.CreateMeeting(ctx, m))
	require.NoError(s.t, s.meetings.UpdateTranscriptStatus(ctx, m.ID, transcript, nil))
	require.NoError(s.t, s.meetings.UpdateAnalysisStatus(ctx, m.ID, analysis, nil))
	return m
}

func (s *testServer) reload(id uuid.UUID) *entities.Meeting {
	s.t.Helper()
	m, err := s.meetings.GetMeeting(context.Background(), id)
	require.NoError(s.t, err)
	require.NotNil(s.t, m)
	return m
}

func (s *testServer) depth() int64 {
	s.t.Helper()
	n, err := s.queue.Depth(context.Background())
	require.NoError(s.t, err)
	return n
}

func TestMeeting_Status(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusFailed, entities.StageStatusPending)

	other := entities.NewJob(entities.JobNameTranscribe, uuid.New())
	job := entities.NewJob(entities.JobNameTranscribe, m.ID)
	job.Attempt = 3
	require.NoError(t, s.queue.DeadLetter(context.Background(), other, "unrelated"))
	require.NoError(t, s.queue.DeadLetter(context.Background(), job, "backend unreachable"))

	rec, env := s.do(http.MethodGet, "/v1/meetings/"+m.ID.String()+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status meeting.StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, m.ID.String(), status.MeetingID)
	assert.Equal(t, "failed", status.TranscriptStatus)
	assert.Equal(t, "pending", status.AnalysisStatus)
	require.Len(t, status.DeadJobs, 1)
	assert.Equal(t, 4, status.DeadJobs[0].Attempts)
	assert.Equal(t, "backend unreachable", status.DeadJobs[0].Reason)
}

func TestMeeting_StatusErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodGet, "/v1/meetings/not-a-uuid/status", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int(apperrors.ErrorCode_INVALID_ARGUMENT), env.Code)

	id := uuid.New()
	rec, env = s.do(http.MethodGet, "/v1/meetings/"+id.String()+"/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int(apperrors.ErrorCode_MEETING_NOT_FOUND), env.Code)
	assert.Equal(t, id.String(), env.Details["meeting_id"])
}

func TestMeeting_TranscribeResetsFailedStage(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusFailed, entities.StageStatusPending)

	rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/transcribe", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp meeting.EnqueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "transcribe", resp.JobName)
	assert.Equal(t, m.ID.String(), resp.MeetingID)

	assert.Equal(t, entities.StageStatusPending, s.reload(m.ID).TranscriptStatus)
	assert.Equal(t, int64(1), s.depth())
}

func TestMeeting_TranscribeConflicts(t *testing.T) {
	s := newTestServer(t, nil)

	for _, status := range []entities.StageStatus{entities.StageStatusCompleted, entities.StageStatusProcessing} {
		m := s.createMeeting(uuid.New(), status, entities.StageStatusPending)

		rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/transcribe", "")
		assert.Equal(t, http.StatusConflict, rec.Code, status)
		assert.Equal(t, int(apperrors.ErrorCode_STAGE_CONFLICT), env.Code)
		assert.Equal(t, string(status), env.Details["status"])
		assert.Equal(t, status, s.reload(m.ID).TranscriptStatus)
	}
	assert.Zero(t, s.depth())
}

func TestMeeting_TranscribeForceRerunsCompletedMeeting(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusCompleted, entities.StageStatusCompleted)

	rec, _ := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/transcribe?force=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	got := s.reload(m.ID)
	assert.Equal(t, entities.StageStatusPending, got.TranscriptStatus)
	assert.Equal(t, entities.StageStatusPending, got.AnalysisStatus)
	assert.Equal(t, int64(1), s.depth())
}

func TestMeeting_AnalyzeRequiresTranscript(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusProcessing, entities.StageStatusPending)

	rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/analyze", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int(apperrors.ErrorCode_TRANSCRIPT_NOT_READY), env.Code)
	assert.Zero(t, s.depth())
}

func TestMeeting_AnalyzeEnqueues(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusCompleted, entities.StageStatusFailed)

	rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/analyze", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp meeting.EnqueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "analyze", resp.JobName)
	assert.Equal(t, entities.StageStatusPending, s.reload(m.ID).AnalysisStatus)
	assert.Equal(t, int64(1), s.depth())
}

func TestMeeting_Quiz(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusCompleted, entities.StageStatusCompleted)
	require.NoError(t, s.transcripts.ReplaceForMeeting(context.Background(), m.ID, []*entities.Transcript{
		entities.NewTranscript(m.ID, 0, "Ana", "We ship Friday.", 0, 3, 0.9),
	}))
	s.assistant.questions = []aiuse.QuizQuestion{
		{Question: "When do we ship?", Type: "short_answer", Answer: "Friday"},
	}

	rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/quiz", `{"count": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp meeting.QuizResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "Friday", resp.Questions[0].Answer)
	assert.Equal(t, 3, s.assistant.quizCount)
	assert.Contains(t, s.assistant.quizText, "[Ana]: We ship Friday.")
}

func TestMeeting_QuizValidation(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusCompleted, entities.StageStatusCompleted)

	for _, body := range []string{`{"count": 0}`, `{"count": 21}`, `{"count": "three"}`} {
		rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/quiz", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, int(apperrors.ErrorCode_INVALID_PAYLOAD), env.Code)
	}
}

func TestMeeting_QuizLLMFailure(t *testing.T) {
	s := newTestServer(t, nil)
	m := s.createMeeting(uuid.New(), entities.StageStatusCompleted, entities.StageStatusCompleted)
	s.assistant.err = errors.New("rate limited")

	rec, env := s.do(http.MethodPost, "/v1/meetings/"+m.ID.String()+"/quiz", `{"count": 2}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int(apperrors.ErrorCode_LLM_UNAVAILABLE), env.Code)
}

func TestMeeting_Brief(t *testing.T) {
	s := newTestServer(t, nil)
	org := uuid.New()
	ctx := context.Background()

	m := s.createMeeting(org, entities.StageStatusCompleted, entities.StageStatusPending)
	require.NoError(t, s.meetings.SaveAnalysis(ctx, m.ID, &entities.AnalysisResult{
		Summary:     "Agreed on the launch date.",
		ActionItems: []entities.ActionItemResult{{Task: "Write release notes", Priority: entities.ActionItemPriorityHigh}},
		Sentiment:   entities.Sentiment{Score: 0.6, Label: entities.SentimentPositive},
	}))
	require.NoError(t, s.meetings.UpdateMeetingStatus(ctx, m.ID, entities.MeetingStatusCompleted))

	body := `{"organization_id":"` + org.String() + `","title":"Launch retro","participants":["Ana","Ben"]}`
	rec, env := s.do(http.MethodPost, "/v1/briefs", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp meeting.BriefResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Review the launch checklist.", resp.Brief)
	assert.Equal(t, 1, resp.PriorMeetings)

	require.Len(t, s.assistant.prior, 1)
	assert.Equal(t, "Agreed on the launch date.", s.assistant.prior[0].Summary)
	assert.Equal(t, []string{"Write release notes"}, s.assistant.prior[0].ActionItems)
}

func TestMeeting_BriefValidation(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{
		`{"title":"Launch retro"}`,
		`{"organization_id":"nope","title":"Launch retro"}`,
		`{"organization_id":"` + uuid.NewString() + `"}`,
	} {
		rec, _ := s.do(http.MethodPost, "/v1/briefs", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestOps_Health(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := pipeline.NewEnqueuer(s.queue, nil).EnqueueTranscription(context.Background(), uuid.New())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp meeting.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.QueueDepth)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.NotContains(t, resp.Checks, "storage")
}

func TestOps_HealthDegraded(t *testing.T) {
	s := newTestServer(t, failingBucket{})

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp meeting.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "bucket missing", resp.Checks["storage"])
}

func TestOps_DeadLetters(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.queue.DeadLetter(ctx, entities.NewJob(entities.JobNameAnalyze, uuid.New()), "boom"))
	}

	rec, env := s.do(http.MethodGet, "/v1/queue/dead?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dead []meeting.DeadJobResponse
	require.NoError(t, json.Unmarshal(env.Data, &dead))
	assert.Len(t, dead, 2)
	assert.Equal(t, "analyze", dead[0].JobName)

	rec, _ = s.do(http.MethodGet, "/v1/queue/dead?limit=0", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/v1/queue/dead?limit=9999", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.metrics.IncDeadJob("transcribe")

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `meetingmind_jobs_dead_total{job="transcribe"} 1`)
}
