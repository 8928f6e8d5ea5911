package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johnquangdev/meetingmind/internal/adapter/repository"
	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/usecase/pipeline"
)

func newEnqueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Manually enqueue a pipeline stage for a meeting",
		Long: `Manually enqueue a pipeline stage for a meeting.

The job runs through the normal stage gates: a completed transcription is skipped
and analysis is refused until the transcript is completed. Use the operator API
with force=true to re-run a completed stage.

Examples:
  meetingmind enqueue transcribe 6f1c0e52-3c1b-4d0e-9d5a-2b7f6f0f7a11
  meetingmind enqueue analyze 6f1c0e52-3c1b-4d0e-9d5a-2b7f6f0f7a11`,
	}

	cmd.AddCommand(newEnqueueStageCmd(a, entities.JobNameTranscribe))
	cmd.AddCommand(newEnqueueStageCmd(a, entities.JobNameAnalyze))

	return cmd
}

func newEnqueueStageCmd(a *app, name entities.JobName) *cobra.Command {
	use := "transcribe"
	if name == entities.JobNameAnalyze {
		use = "analyze"
	}

	return &cobra.Command{
		Use:   use + " <meeting-id>",
		Short: fmt.Sprintf("Enqueue the %s stage", name.Stage()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid meeting ID %q: %w", args[0], err)
			}

			ctx := a.context(cmd)
			inf, err := a.openInfra(ctx)
			if err != nil {
				return err
			}
			defer inf.Close()

			m, err := repository.NewMeetingRepository(inf.db).GetMeeting(ctx, meetingID)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("%w: %s", entities.ErrMeetingNotFound, meetingID)
			}
			if name == entities.JobNameAnalyze && !m.TranscriptReady() {
				return fmt.Errorf("%w: transcript is %s", entities.ErrTranscriptNotReady, m.TranscriptStatus)
			}

			enqueuer := pipeline.NewEnqueuer(inf.queue, a.logger)
			var job *entities.Job
			if name == entities.JobNameAnalyze {
				job, err = enqueuer.EnqueueAnalysis(ctx, meetingID)
			} else {
				job, err = enqueuer.EnqueueTranscription(ctx, meetingID)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s job %s for meeting %s\n", job.Name, job.ID, meetingID)
			return nil
		},
	}
}
