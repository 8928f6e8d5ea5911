package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/adapter/handler"
	"github.com/johnquangdev/meetingmind/internal/adapter/repository"
	"github.com/johnquangdev/meetingmind/internal/usecase/pipeline"
	pkgvalidator "github.com/johnquangdev/meetingmind/pkg/validator"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operator HTTP API",
		Long: `Run the operator HTTP API: health, metrics, per-meeting status,
manual re-enqueue of pipeline stages, briefs, quizzes and the dead letter list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(a.context(cmd))
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	inf, err := a.openInfra(ctx)
	if err != nil {
		return err
	}
	defer inf.Close()

	sqlDB, err := inf.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database object: %w", err)
	}

	analyzer, err := a.newAnalyzer(inf.metrics)
	if err != nil {
		return err
	}

	var bucket handler.BucketChecker
	if store := a.newObjectStore(); store != nil {
		bucket = store
	}

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = pkgvalidator.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	meetingHandler := handler.NewMeeting(handler.MeetingDeps{
		Meetings:    repository.NewMeetingRepository(inf.db),
		Transcripts: repository.NewTranscriptRepository(inf.db),
		ActionItems: repository.NewActionItemRepository(inf.db),
		Enqueuer:    pipeline.NewEnqueuer(inf.queue, a.logger),
		Queue:       inf.queue,
		Assistant:   analyzer,
		Logger:      a.logger,
	})
	opsHandler := handler.NewOps(sqlDB, inf.queue, bucket, a.logger)
	handler.NewRouter(meetingHandler, opsHandler, inf.registry).Setup(e)

	addr := fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 Starting server",
			zap.String("addr", addr),
			zap.String("environment", a.cfg.Server.Environment),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	a.logger.Info("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("✅ Server stopped gracefully")
	return nil
}
