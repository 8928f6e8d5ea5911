package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetingmind/internal/adapter/repository"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/audio"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/cache"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/database"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/metrics"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/notify"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/storage"
	aiuse "github.com/johnquangdev/meetingmind/internal/usecase/ai"
	"github.com/johnquangdev/meetingmind/internal/usecase/pipeline"
	pkgai "github.com/johnquangdev/meetingmind/pkg/ai"
)

// infra holds the connections a long running command shares
type infra struct {
	db       *gorm.DB
	redis    *redis.Client
	queue    queue.Queue
	registry *prometheus.Registry
	metrics  *metrics.PipelineMetrics
	logger   *zap.Logger
}

func (a *app) openDB() (*gorm.DB, error) {
	a.logger.Info("📦 Connecting to database...")
	db, err := database.NewPostgresDB(a.cfg)
	if err != nil {
		return nil, err
	}
	if a.cfg.Database.AutoMigrate {
		if a.cfg.IsProduction() {
			_ = database.CloseDB(db)
			return nil, fmt.Errorf("DB_AUTO_MIGRATE is enabled in production; manage the schema with `meetingmind migrate up`")
		}
		a.logger.Info("🔄 Applying migrations (DB_AUTO_MIGRATE)")
		if _, err := database.Migrate(db, database.MigrationSource(a.cfg.Database.MigrationsDir), migrateUp, 0); err != nil {
			_ = database.CloseDB(db)
			return nil, err
		}
	}
	return db, nil
}

func (a *app) openInfra(ctx context.Context) (*infra, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	inf := &infra{db: db, logger: a.logger}

	if a.cfg.Queue.Backend == "redis" {
		a.logger.Info("📦 Connecting to Redis...")
		inf.redis, err = cache.NewRedisClient(ctx, a.cfg)
		if err != nil {
			inf.Close()
			return nil, err
		}
	} else {
		a.logger.Warn("⚠️ Using the in-memory queue; jobs are lost on restart and not shared between processes")
	}

	inf.queue, err = queue.New(a.cfg.Queue, inf.redis)
	if err != nil {
		inf.Close()
		return nil, err
	}

	inf.registry = prometheus.NewRegistry()
	inf.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	inf.metrics = metrics.NewPipelineMetrics(inf.registry)
	return inf, nil
}

// Close releases every connection; it is safe on a partially opened infra
func (i *infra) Close() {
	if i.queue != nil {
		if err := i.queue.Close(); err != nil {
			i.logger.Warn("⚠️ Failed to close queue", zap.Error(err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			i.logger.Warn("⚠️ Failed to close redis", zap.Error(err))
		}
	}
	if i.db != nil {
		if err := database.CloseDB(i.db); err != nil {
			i.logger.Warn("⚠️ Failed to close database", zap.Error(err))
		}
	}
}

func (i *infra) publisher() notify.ProgressPublisher {
	if i.redis == nil {
		return notify.NopPublisher{}
	}
	return notify.NewRedisPublisher(i.redis, i.logger)
}

// newAnalyzer builds the analysis engine on the configured LLM provider
func (a *app) newAnalyzer(m *metrics.PipelineMetrics) (*aiuse.Analyzer, error) {
	llm, err := pkgai.NewLLMClient(a.cfg.LLM, a.logger)
	if err != nil {
		return nil, err
	}
	return aiuse.NewAnalyzer(m.InstrumentLLM(llm), a.logger), nil
}

// newObjectStore connects to the recordings bucket; a failure only disables s3:// recordings
func (a *app) newObjectStore() *storage.MinIOClient {
	client, err := storage.NewMinIOClient(&a.cfg.Storage)
	if err != nil {
		a.logger.Warn("⚠️ Object storage unavailable; only http(s) recordings can be resolved", zap.Error(err))
		return nil
	}
	return client
}

// closeTranscriber stops a local helper process and removes its script
func (a *app) closeTranscriber(t pkgai.Transcriber) {
	if err := pkgai.CloseTranscriber(t); err != nil {
		a.logger.Warn("⚠️ Failed to close transcriber", zap.Error(err))
	}
}

// newRunner wires every stage; release must run after the runner has stopped
func (a *app) newRunner(inf *infra) (runner *pipeline.Runner, release func(), err error) {
	transcriber, err := pkgai.NewTranscriber(a.cfg.Transcription, a.logger)
	if err != nil {
		return nil, nil, err
	}
	release = func() { a.closeTranscriber(transcriber) }
	analyzer, err := a.newAnalyzer(inf.metrics)
	if err != nil {
		release()
		return nil, nil, err
	}

	var objects storage.ObjectGetter
	if store := a.newObjectStore(); store != nil {
		objects = store
	}
	resolver := storage.NewRecordingResolver(
		objects,
		&http.Client{Timeout: a.cfg.Storage.DownloadTimeout},
		a.cfg.Storage.RecordingMaxBytes,
		a.logger,
	)

	var enhancer pipeline.AudioEnhancer
	if a.cfg.Features.NoiseCancellation {
		enhancer = audio.NewFFmpegEnhancer()
	}

	meetings := repository.NewMeetingRepository(inf.db)
	transcripts := repository.NewTranscriptRepository(inf.db)
	enqueuer := pipeline.NewEnqueuer(inf.queue, a.logger)
	progress := inf.publisher()

	return pipeline.NewRunner(pipeline.RunnerDeps{
		Queue:    inf.queue,
		Meetings: meetings,
		Transcription: pipeline.NewTranscriptionStage(pipeline.TranscriptionDeps{
			Meetings:    meetings,
			Transcripts: transcripts,
			Recordings:  resolver,
			Enhancer:    enhancer,
			Transcriber: transcriber,
			Diarizer:    pkgai.NewDiarizer(a.cfg.Features.Diarization, a.cfg.Diarization, a.logger),
			Enqueuer:    enqueuer,
			Progress:    progress,
			Language:    a.cfg.Transcription.Language,
			Logger:      a.logger,
		}),
		Analysis: pipeline.NewAnalysisStage(pipeline.AnalysisDeps{
			Meetings:       meetings,
			Transcripts:    transcripts,
			Analyzer:       analyzer,
			Enqueuer:       enqueuer,
			Progress:       progress,
			KnowledgeGraph: a.cfg.Features.KnowledgeGraph,
			Logger:         a.logger,
		}),
		Knowledge: pipeline.NewKnowledgeGraphStage(meetings, repository.NewKnowledgeRepository(inf.db), a.logger),
		Metrics:   inf.metrics,
		Config:    pipeline.RunnerConfigFromConfig(a.cfg),
		Logger:    a.logger,
	}), release, nil
}
