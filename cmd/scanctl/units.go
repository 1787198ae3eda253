package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newUnitsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "units",
		Aliases: []string{"unit"},
		Short:   "Bind, enable and clear scan units 1-10",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List scan unit bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			units := a.reg.Units()
			rows := make([][]string, 0, len(units))
			for _, u := range units {
				label := ""
				if u.Bound() {
					if c, err := a.reg.Controller(u.Controller); err == nil {
						label = c.Label
					}
				}
				rows = append(rows, []string{
					strconv.Itoa(u.Unit),
					orDefault(u.Controller, dimStyle.Render("-")),
					label,
					onOff(u.Enabled),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"UNIT", "CONTROLLER", "LABEL", "ENABLED"}, rows)
		},
	}

	bind := &cobra.Command{
		Use:   "bind UNIT ADDRESS",
		Short: "Bind a scan unit to a registered controller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := parseUnit(args[0])
			if err != nil {
				return err
			}
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			return a.svc.AssociateUnit(cmd.Context(), opts.actor(), unit, args[1])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear UNIT",
		Short: "Remove a scan unit's binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := parseUnit(args[0])
			if err != nil {
				return err
			}
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			return a.svc.ClearUnit(cmd.Context(), opts.actor(), unit)
		},
	}

	cmd.AddCommand(list, bind, clearCmd,
		newUnitsEnableCmd(opts, "enable", true),
		newUnitsEnableCmd(opts, "disable", false),
	)
	return cmd
}

func newUnitsEnableCmd(opts *rootOptions, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " UNIT...",
		Short: fmt.Sprintf("Mark scan units as %sd for broadcasts", use),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			units := make([]int, 0, len(args))
			for _, arg := range args {
				unit, err := parseUnit(arg)
				if err != nil {
					return err
				}
				units = append(units, unit)
			}

			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			for _, unit := range units {
				if err := a.svc.SetUnitEnabled(cmd.Context(), opts.actor(), unit, enabled); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func parseUnit(s string) (int, error) {
	unit, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unit must be a number: %q", s)
	}
	return unit, nil
}
