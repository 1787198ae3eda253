package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/history"
)

const timeLayout = "2006-01-02 15:04:05"

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded dispatch runs",
	}

	var (
		filter history.Filter
		status string
		since  time.Duration
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			filter.Status = dispatch.Status(status)
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			result, err := a.svc.History().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOut(cmd.OutOrStdout(), result)
			}

			rows := make([][]string, 0, len(result.Runs))
			for _, r := range result.Runs {
				rows = append(rows, []string{
					r.ID,
					r.StartedAt.Local().Format(timeLayout),
					r.Source,
					r.Label,
					fmt.Sprintf("%d/%d", r.FramesSent, r.FramesTotal),
					statusText(r.Status),
				})
			}
			if err := renderTable(cmd.OutOrStdout(), []string{"ID", "STARTED", "SOURCE", "LABEL", "FRAMES", "STATUS"}, rows); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("%d of %d runs", len(result.Runs), result.Total)))
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status (completed, partial, failed, cancelled)")
	list.Flags().StringVar(&filter.Source, "source", "", "Filter by source (api, cli, mqtt)")
	list.Flags().DurationVar(&since, "since", 0, "Only runs started within this duration (e.g. 24h)")
	list.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum runs to show")
	list.Flags().IntVar(&filter.Offset, "offset", 0, "Skip this many runs")
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run with its per-entry results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			run, err := a.svc.History().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %s (%s, %s)\n", run.ID, statusText(run.Status), run.Source, run.Duration.Round(time.Millisecond))

			rows := make([][]string, 0, len(run.Results))
			for _, r := range run.Results {
				rows = append(rows, []string{
					r.Destination,
					r.CommandName,
					fmt.Sprintf("%d/%d", r.FramesSent, r.Repetitions),
					string(r.Status),
					r.Error,
				})
			}
			return renderTable(out, []string{"DESTINATION", "COMMAND", "FRAMES", "STATUS", "ERROR"}, rows)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		filter audit.Filter
		since  time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			result, err := a.svc.Audit().List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOut(cmd.OutOrStdout(), result)
			}

			rows := make([][]string, 0, len(result.Logs))
			for _, l := range result.Logs {
				rows = append(rows, []string{
					l.CreatedAt.Local().Format(timeLayout),
					l.Operator,
					l.Source,
					l.Action,
					l.EntityType,
					l.EntityID,
				})
			}
			if err := renderTable(cmd.OutOrStdout(), []string{"TIME", "OPERATOR", "SOURCE", "ACTION", "ENTITY", "ID"}, rows); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(strconv.Itoa(result.Total)+" entries"))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Action, "action", "", "Filter by action (register, dispatch, macro_save, ...)")
	cmd.Flags().StringVar(&filter.EntityType, "entity", "", "Filter by entity type (controller, unit, macro, run, operator)")
	cmd.Flags().StringVar(&filter.EntityID, "id", "", "Filter by entity ID")
	cmd.Flags().StringVar(&filter.Operator, "by", "", "Filter by operator")
	cmd.Flags().StringVar(&filter.Source, "source", "", "Filter by source (api, cli)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries within this duration (e.g. 24h)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Skip this many entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
