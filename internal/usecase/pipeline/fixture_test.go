package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/johnquangdev/meetingmind/internal/adapter/repository"
	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/notify"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/storage"
	usecaseai "github.com/johnquangdev/meetingmind/internal/usecase/ai"
	"github.com/johnquangdev/meetingmind/pkg/ai"
)

type fakeResolver struct {
	dir   string
	err   error
	mu    sync.Mutex
	paths []string
}

func (f *fakeResolver) Resolve(_ context.Context, rawURL string) (*storage.Recording, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.dir, uuid.NewString()+filepath.Ext(rawURL))
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		return nil, err
	}
	f.paths = append(f.paths, path)
	return &storage.Recording{Path: path, Size: 4}, nil
}

func (f *fakeResolver) lastPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		return ""
	}
	return f.paths[len(f.paths)-1]
}

type fakeTranscriber struct {
	mu       sync.Mutex
	segments []ai.Segment
	err      error
	panicMsg string
	delay    time.Duration
	calls    int
	paths    []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string, _ ai.TranscribeOptions) ([]ai.Segment, error) {
	f.mu.Lock()
	f.calls++
	f.paths = append(f.paths, audioPath)
	segments, err, panicMsg, delay := f.segments, f.err, f.panicMsg, f.delay
	f.mu.Unlock()

	time.Sleep(delay)
	if panicMsg != "" {
		panic(panicMsg)
	}
	return segments, err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnhancer struct {
	out     string
	err     error
	cleaned bool
}

func (f *fakeEnhancer) Enhance(_ context.Context, _ string) (string, func(), error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.out, func() { f.cleaned = true }, nil
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *entities.AnalysisResult
	err    error
	prior  []string
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, segments []*entities.Transcript, _ string, prior []string) (*entities.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prior = prior
	if f.err != nil {
		return nil, f.err
	}
	// hand out a copy so stage mutations never leak between runs
	out := *f.result
	out.TalkTime = usecaseai.ComputeTalkTime(segments)
	return &out, nil
}

type fixture struct {
	t           *testing.T
	db          *gorm.DB
	meetings    *repository.MeetingRepository
	transcripts *repository.TranscriptRepository
	knowledge   *repository.KnowledgeRepository
	queue       *queue.MemoryQueue
	enqueuer    *Enqueuer
	progress    *notify.ChannelPublisher
	resolver    *fakeResolver
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
}

func newFixture(t *testing.T) *fixture {
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
		&entities.KnowledgeNode{},
		&entities.KnowledgeEdge{},
	))

	q := queue.NewMemoryQueue(queue.Options{Name: "test"})
	return &fixture{
		t:           t,
		db:          db,
		meetings:    repository.NewMeetingRepository(db),
		transcripts: repository.NewTranscriptRepository(db),
		knowledge:   repository.NewKnowledgeRepository(db),
		queue:       q,
		enqueuer:    NewEnqueuer(q, zap.NewNop()),
		progress:    notify.NewChannelPublisher(256),
		resolver:    &fakeResolver{dir: t.TempDir()},
		transcriber: &fakeTranscriber{
			segments: []ai.Segment{
				{Text: "Second point.", Start: 4, End: 6, Speaker: "Ben", Confidence: 0.8},
				{Text: "Let's start.", Start: 0, End: 4, Speaker: "Ana", Confidence: 0.9},
				{Text: "   ", Start: 6, End: 7},
			},
		},
		analyzer: &fakeAnalyzer{
			result: &entities.AnalysisResult{
				Summary:   "Agreed to ship on Friday.",
				KeyTopics: []string{"Release"},
				ActionItems: []entities.ActionItemResult{
					{Task: "Cut the release branch", Assignee: "Ana", Priority: entities.ActionItemPriorityHigh},
				},
				Sentiment: entities.Sentiment{Score: 0.7, Label: entities.SentimentPositive},
				Decisions: []string{"Ship on Friday"},
			},
		},
	}
}

func (f *fixture) createMeeting(org uuid.UUID) *entities.Meeting {
	f.t.Helper()
	m := entities.NewMeeting(org, "Release sync", "s3://recordings/release.wav")
	require.NoError(f.t, f.meetings.CreateMeeting(context.Background(), m))
	return m
}

func (f *fixture) reload(id uuid.UUID) *entities.Meeting {
	f.t.Helper()
	m, err := f.meetings.GetMeeting(context.Background(), id)
	require.NoError(f.t, err)
	require.NotNil(f.t, m)
	return m
}

func (f *fixture) transcriptionStage(enhancer AudioEnhancer) *TranscriptionStage {
	return NewTranscriptionStage(TranscriptionDeps{
		Meetings:    f.meetings,
		Transcripts: f.transcripts,
		Recordings:  f.resolver,
		Enhancer:    enhancer,
		Transcriber: f.transcriber,
		Enqueuer:    f.enqueuer,
		Progress:    f.progress,
		Language:    "auto",
		Logger:      zap.NewNop(),
	})
}

func (f *fixture) analysisStage(knowledgeGraph bool) *AnalysisStage {
	return NewAnalysisStage(AnalysisDeps{
		Meetings:       f.meetings,
		Transcripts:    f.transcripts,
		Analyzer:       f.analyzer,
		Enqueuer:       f.enqueuer,
		Progress:       f.progress,
		KnowledgeGraph: knowledgeGraph,
		Logger:         zap.NewNop(),
	})
}

func (f *fixture) knowledgeStage() *KnowledgeGraphStage {
	return NewKnowledgeGraphStage(f.meetings, f.knowledge, zap.NewNop())
}

// claimAll drains every due job from the queue
func (f *fixture) claimAll() []*entities.Job {
	f.t.Helper()
	var jobs []*entities.Job
	for {
		job, err := f.queue.Claim(context.Background())
		require.NoError(f.t, err)
		if job == nil {
			return jobs
		}
		jobs = append(jobs, job)
	}
}

// events drains the buffered progress events
func (f *fixture) events() []entities.ProgressEvent {
	var out []entities.ProgressEvent
	for {
		select {
		case e := <-f.progress.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}
