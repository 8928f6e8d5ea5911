package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline job workers",
		Long: `Run the pipeline workers. They claim transcription, analysis and knowledge graph
jobs from the queue until SIGINT or SIGTERM, then finish in-flight jobs and exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireCredentials(); err != nil {
				return err
			}
			return a.runWorker(a.context(cmd))
		},
	}
}

func (a *app) runWorker(ctx context.Context) error {
	inf, err := a.openInfra(ctx)
	if err != nil {
		return err
	}
	defer inf.Close()

	runner, release, err := a.newRunner(inf)
	if err != nil {
		return err
	}
	defer release()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// jobs keep the uncancelled context so Stop can let them finish
	if err := runner.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	<-sigCtx.Done()

	a.logger.Info("🛑 Shutdown signal received, draining in-flight jobs")
	return runner.Stop()
}
