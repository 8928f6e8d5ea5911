package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johnquangdev/meetingmind/internal/adapter/repository"
	aiuse "github.com/johnquangdev/meetingmind/internal/usecase/ai"
)

func newBriefCmd(a *app) *cobra.Command {
	var (
		orgID        string
		title        string
		participants []string
	)

	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Print a pre-meeting brief built from recent meetings",
		Long: `Print a pre-meeting brief for an upcoming meeting, built from the organization's
three most recent completed meetings and their action items.

Example:
  meetingmind brief --org 0b6f... --title "Launch retro" --participant Ana --participant Ben`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := uuid.Parse(orgID)
			if err != nil {
				return fmt.Errorf("invalid --org %q: %w", orgID, err)
			}
			if a.cfg.LLM.APIKey == "" {
				return fmt.Errorf("missing credentials: LLM_API_KEY is required")
			}

			ctx := a.context(cmd)
			db, err := a.openDB()
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			prior, err := aiuse.LoadPriorMeetings(ctx,
				repository.NewMeetingRepository(db),
				repository.NewActionItemRepository(db),
				org,
			)
			if err != nil {
				return err
			}

			// no worker metrics here; InstrumentLLM is nil-safe
			analyzer, err := a.newAnalyzer(nil)
			if err != nil {
				return err
			}
			brief, err := analyzer.GeneratePreMeetingBrief(ctx, title, participants, prior)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), brief)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "Title of the upcoming meeting (required)")
	cmd.Flags().StringArrayVar(&participants, "participant", nil, "Participant name (repeatable)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}
