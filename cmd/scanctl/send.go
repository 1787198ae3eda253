package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/macro"
)

// errRunIncomplete is returned when a run did not send every frame, so
// scripts see a non-zero exit status.
var errRunIncomplete = errors.New("run did not complete")

// sendFlags are shared by send and broadcast.
type sendFlags struct {
	macro  string
	global bool
	quiet  bool
}

func (f *sendFlags) register(cmd *cobra.Command, globalHelp string) {
	cmd.Flags().StringVarP(&f.macro, "macro", "m", "", "Send this macro instead of the current selections")
	if globalHelp != "" {
		cmd.Flags().BoolVar(&f.global, "global", false, globalHelp)
	}
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not print progress")
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send ADDRESS",
		Short: "Send a controller's enabled command groups",
		Long: `Send the enabled command groups of one controller, in catalog order.

With --macro the named macro is sent instead; it is looked up in the
controller's library, or in the global library with --global. The
controller's stored selections are not changed. Ctrl+C cancels the run at
the next frame boundary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, newProgressPrinter(cmd.ErrOrStderr(), f.quiet))
			if err != nil {
				return err
			}
			defer a.close()

			var cfg *macro.Config
			if f.macro != "" {
				scope := macro.ForController(args[0])
				if f.global {
					scope = macro.Global
				}
				loaded, err := a.svc.Macros().Load(scope, f.macro)
				if err != nil {
					return err
				}
				cfg = &loaded
			}

			run, err := a.svc.SendToController(cmd.Context(), opts.actor(), args[0], cfg)
			if err != nil {
				return err
			}
			return waitRun(cmd.Context(), cmd.OutOrStdout(), run)
		},
	}
	f.register(cmd, "Look the macro up in the global library")
	return cmd
}

func newBroadcastCmd(opts *rootOptions) *cobra.Command {
	var (
		f     sendFlags
		label string
	)
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send to every controller bound to an enabled scan unit",
		Long: `Send to every controller bound to an enabled scan unit. A controller
bound to several units is sent to once.

Without --macro each controller gets its own current selections and
controllers with nothing enabled are skipped. With --macro (a global
macro) every controller gets the same configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, newProgressPrinter(cmd.ErrOrStderr(), f.quiet))
			if err != nil {
				return err
			}
			defer a.close()

			var run *dispatch.Run
			if f.macro != "" {
				run, err = a.svc.BroadcastMacro(cmd.Context(), opts.actor(), macro.Global, f.macro)
			} else {
				run, err = a.svc.Broadcast(cmd.Context(), opts.actor(), nil, label)
			}
			if err != nil {
				return err
			}
			return waitRun(cmd.Context(), cmd.OutOrStdout(), run)
		},
	}
	f.register(cmd, "")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Run label recorded in history")
	return cmd
}

// waitRun blocks until run ends and prints its outcome. The run inherits
// ctx, so an interrupt cancels it and the partial outcome is still printed.
func waitRun(ctx context.Context, w io.Writer, run *dispatch.Run) error {
	outcome, runErr := run.Wait()
	if outcome != nil {
		printOutcome(w, outcome)
	}
	if runErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted: %w", runErr)
		}
		return runErr
	}
	if !outcome.Success() {
		return fmt.Errorf("%w: %s", errRunIncomplete, outcome.Status)
	}
	return nil
}
