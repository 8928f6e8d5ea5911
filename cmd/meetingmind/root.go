package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/pkg/config"
	"github.com/johnquangdev/meetingmind/pkg/logger"
)

// app carries the state shared by every subcommand
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "meetingmind",
		Short: "Meeting recording transcription and analysis pipeline",
		Long: `meetingmind turns meeting recordings into transcripts, summaries,
action items and an organization knowledge graph.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Server.Environment, cfg.Log.Level)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = log.With(zap.String("command", cmd.Name()))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newWorkerCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newEnqueueCmd(a))
	cmd.AddCommand(newBriefCmd(a))
	cmd.AddCommand(newTranscribeStreamCmd(a))

	return cmd
}

// requireCredentials fails commands that call a transcription or LLM backend without keys
func (a *app) requireCredentials() error {
	if err := a.cfg.RequireCredentials(); err != nil {
		return fmt.Errorf("missing credentials: %w", err)
	}
	return nil
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
