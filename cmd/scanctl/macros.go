package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/scanctl/internal/macro"
)

// macroScopeFlag selects the global library or one controller's library.
type macroScopeFlag struct {
	controller string
}

func (f *macroScopeFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.controller, "controller", "", "Use this controller's library instead of the global one")
}

func (f *macroScopeFlag) scope() macro.Scope {
	if f.controller == "" {
		return macro.Global
	}
	return macro.ForController(f.controller)
}

func newMacrosCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "macros",
		Aliases: []string{"macro"},
		Short:   "Manage saved command configurations",
		Long: `Manage macros: named command configurations saved in the global library
or in one controller's library (--controller).

Macro files are YAML:

  sequence: [X_FF_Reset]
  state:
    X_FF_Reset: {enabled: true, repetitions: 3, delay: 100ms}`,
	}
	cmd.AddCommand(
		newMacrosListCmd(opts),
		newMacrosShowCmd(opts),
		newMacrosImportCmd(opts),
		newMacrosCaptureCmd(opts),
		newMacrosApplyCmd(opts),
		newMacrosRenameCmd(opts),
		newMacrosDeleteCmd(opts),
	)
	return cmd
}

func newMacrosListCmd(opts *rootOptions) *cobra.Command {
	var sf macroScopeFlag
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			scope := sf.scope()
			all := a.svc.Macros().All(scope)
			rows := make([][]string, 0, len(all))
			for _, name := range a.svc.Macros().List(scope) {
				cfg := all[name]
				rows = append(rows, []string{
					name,
					strconv.Itoa(len(macro.Enabled(cfg))),
					strconv.Itoa(len(cfg.State)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(scope.String()))
			return renderTable(cmd.OutOrStdout(), []string{"NAME", "ENABLED", "GROUPS"}, rows)
		},
	}
	sf.register(cmd)
	return cmd
}

func newMacrosShowCmd(opts *rootOptions) *cobra.Command {
	var sf macroScopeFlag
	cmd := &cobra.Command{
		Use:     "show NAME",
		Aliases: []string{"export"},
		Short:   "Print a macro as YAML",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			cfg, err := a.svc.Macros().Load(sf.scope(), args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encoding macro: %w", err)
			}
			return enc.Close()
		},
	}
	sf.register(cmd)
	return cmd
}

func newMacrosImportCmd(opts *rootOptions) *cobra.Command {
	var sf macroScopeFlag
	cmd := &cobra.Command{
		Use:   "import NAME FILE",
		Short: "Save a macro from a YAML file, replacing any macro of that name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading macro file: %w", err)
			}
			var cfg macro.Config
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("parsing macro file: %w", err)
			}

			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.SaveMacro(cmd.Context(), opts.actor(), sf.scope(), args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s in %s\n", args[0], sf.scope())
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newMacrosCaptureCmd(opts *rootOptions) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "capture ADDRESS NAME",
		Short: "Save a controller's current selections as a macro",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			scope := macro.ForController(args[0])
			if global {
				scope = macro.Global
			}
			cfg, err := a.svc.SaveCurrentAsMacro(cmd.Context(), opts.actor(), args[0], scope, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s in %s (%d enabled)\n", args[1], scope, len(macro.Enabled(cfg)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Save to the global library")
	return cmd
}

func newMacrosApplyCmd(opts *rootOptions) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "apply ADDRESS NAME",
		Short: "Load a macro into a controller's current selections",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			scope := macro.ForController(args[0])
			if global {
				scope = macro.Global
			}
			_, err = a.svc.ApplyMacro(cmd.Context(), opts.actor(), args[0], scope, args[1])
			return err
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Load from the global library")
	return cmd
}

func newMacrosRenameCmd(opts *rootOptions) *cobra.Command {
	var sf macroScopeFlag
	cmd := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a macro",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			return a.svc.RenameMacro(cmd.Context(), opts.actor(), sf.scope(), args[0], args[1])
		},
	}
	sf.register(cmd)
	return cmd
}

func newMacrosDeleteCmd(opts *rootOptions) *cobra.Command {
	var sf macroScopeFlag
	cmd := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a macro",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			existed, err := a.svc.DeleteMacro(cmd.Context(), opts.actor(), sf.scope(), args[0])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("macro %q not found in %s", args[0], sf.scope())
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}
