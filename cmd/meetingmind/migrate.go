package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetingmind/internal/infrastructure/database"
)

const (
	migrateUp   = migrate.Up
	migrateDown = migrate.Down
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or list schema migrations.

Migrations are compiled into the binary; set DB_MIGRATIONS_DIR to read them from disk instead.

Examples:
  meetingmind migrate up
  meetingmind migrate down --max 1
  meetingmind migrate status`,
	}

	cmd.AddCommand(newMigrateApplyCmd(a, "up", "Apply pending migrations", migrateUp, 0))
	cmd.AddCommand(newMigrateApplyCmd(a, "down", "Roll back applied migrations", migrateDown, 1))
	cmd.AddCommand(newMigrateStatusCmd(a))

	return cmd
}

func newMigrateApplyCmd(a *app, use, short string, direction migrate.MigrationDirection, defaultMax int) *cobra.Command {
	var max int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			n, err := database.Migrate(db, database.MigrationSource(a.cfg.Database.MigrationsDir), direction, max)
			if err != nil {
				return err
			}
			a.logger.Info("✅ Migrations applied", zap.String("direction", use), zap.Int("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) %s\n", n, use)
			return nil
		},
	}

	cmd.Flags().IntVar(&max, "max", defaultMax, "Maximum number of migrations to apply (0 for all)")

	return cmd
}

func newMigrateStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			states, err := database.MigrationStatus(db, database.MigrationSource(a.cfg.Database.MigrationsDir))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tAPPLIED AT")
			for _, s := range states {
				applied := "pending"
				if s.AppliedAt != nil {
					applied = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\n", s.ID, applied)
			}
			return w.Flush()
		},
	}
}
