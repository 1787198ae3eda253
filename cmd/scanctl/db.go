package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/infrastructure/config"
	"github.com/nerrad567/scanctl/internal/store"
)

func newDBCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			applied, pending, err := a.db.GetMigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(applied)+len(pending))
			for _, m := range applied {
				rows = append(rows, []string{m.Version, okStyle.Render("applied"), m.AppliedAt.Local().Format(timeLayout)})
			}
			for _, m := range pending {
				rows = append(rows, []string{m.Version + " " + m.Name, warnStyle.Render("pending"), ""})
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(a.db.Path()))
			return renderTable(cmd.OutOrStdout(), []string{"VERSION", "STATE", "APPLIED"}, rows)
		},
	}

	backup := &cobra.Command{
		Use:   "backup DEST",
		Short: "Write a consistent copy of the database to DEST",
		Long: `Write a consistent copy of the database to DEST, which must not exist.
With the json storage backend the registry document is also copied next to
itself with a .backup suffix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.Backup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database copied to %s\n", args[0])

			if js, ok := a.storage.(*store.JSONFile); ok {
				if err := js.Backup(); err != nil {
					return fmt.Errorf("backing up registry document: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registry copied to %s%s\n", js.Path(), store.BackupSuffix)
			}
			return nil
		},
	}

	snapshots := &cobra.Command{
		Use:   "snapshots",
		Short: "List retained registry snapshots (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			sq, ok := a.storage.(*store.SQLite)
			if !ok {
				return fmt.Errorf("snapshots need storage.backend %q (configured: %q)", config.BackendSQLite, a.cfg.Storage.Backend)
			}
			revs, err := sq.Revisions(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(revs))
			for _, r := range revs {
				rows = append(rows, []string{
					strconv.FormatInt(r.Version, 10),
					r.SavedAt.Local().Format(timeLayout),
					strconv.Itoa(r.Controllers),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"VERSION", "SAVED", "CONTROLLERS"}, rows)
		},
	}

	var confirm bool
	down := &cobra.Command{
		Use:    "migrate-down",
		Short:  "Roll back the most recent schema migration",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("refusing to roll back without --yes")
			}
			a, err := openApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			return a.db.MigrateDown(cmd.Context())
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "Confirm the rollback")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune-audit",
		Short: "Delete audit log entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			a, err := openApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := audit.NewSQLiteRepository(a.db.DB).Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d audit entries removed\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Age cutoff (e.g. 720h)")

	cmd.AddCommand(status, backup, snapshots, prune, down)
	return cmd
}
