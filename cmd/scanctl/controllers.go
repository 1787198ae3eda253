package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/registry"
)

func newControllersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "controllers",
		Aliases: []string{"controller", "ctl"},
		Short:   "Manage registered controllers",
	}
	cmd.AddCommand(
		newControllersListCmd(opts),
		newControllersShowCmd(opts),
		newControllersAddCmd(opts),
		newControllersRemoveCmd(opts),
		newControllersLabelCmd(opts),
		newControllersSetCmd(opts),
	)
	return cmd
}

func newControllersListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered controllers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			controllers := a.reg.Controllers()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, controllers)
			}

			rows := make([][]string, 0, len(controllers))
			for _, c := range controllers {
				rows = append(rows, []string{
					c.Address,
					c.Label,
					c.Interface,
					c.Source,
					joinInts(a.reg.UnitsForController(c.Address)),
					strconv.Itoa(len(enabledGroups(c))),
				})
			}
			return renderTable(out, []string{"ADDRESS", "LABEL", "INTERFACE", "SOURCE", "UNITS", "ENABLED"}, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newControllersShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ADDRESS",
		Short: "Show a controller and its command selections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.reg.Controller(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, c)
			}

			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("address:"), c.Address)
			if c.Label != "" {
				fmt.Fprintf(out, "%s %s\n", headerStyle.Render("label:"), c.Label)
			}
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("interface:"), orDefault(c.Interface, a.cfg.Network.Interface))
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("source:"), orDefault(c.Source, "adapter address"))
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("units:"), orDefault(joinInts(a.reg.UnitsForController(c.Address)), "none"))

			names := make([]string, 0, len(c.Commands))
			for name := range c.Commands {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				st := c.Commands[name]
				rows = append(rows, []string{
					name,
					onOff(st.Enabled),
					st.Option,
					strconv.Itoa(st.Repetitions),
					st.Delay.String(),
				})
			}
			return renderTable(out, []string{"GROUP", "STATE", "OPTION", "REPS", "DELAY"}, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newControllersAddCmd(opts *rootOptions) *cobra.Command {
	var c registry.Controller
	cmd := &cobra.Command{
		Use:   "add ADDRESS",
		Short: "Register a controller by hardware address",
		Long: `Register a controller by its hardware address.

Without --source, frames are sent from the hardware address of the
adapter they leave through. Without --interface, network.interface from
the configuration is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			c.Address = args[0]
			stored, err := a.svc.RegisterController(cmd.Context(), opts.actor(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", stored.Address)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.Source, "source", "", "Source hardware address for frames")
	cmd.Flags().StringVarP(&c.Interface, "interface", "i", "", "Network interface to send through")
	cmd.Flags().StringVarP(&c.Label, "label", "l", "", "Display label")
	return cmd
}

func newControllersRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ADDRESS",
		Aliases: []string{"rm"},
		Short:   "Unregister a controller, its macros and unit bindings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.UnregisterController(cmd.Context(), opts.actor(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newControllersLabelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "label ADDRESS LABEL",
		Short: "Set a controller's display label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			return a.svc.UpdateLabel(cmd.Context(), opts.actor(), args[0], args[1])
		},
	}
}

func newControllersSetCmd(opts *rootOptions) *cobra.Command {
	var (
		disable bool
		option  string
		reps    int
		delay   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "set ADDRESS GROUP",
		Short: "Enable or configure a command group on a controller",
		Long: `Enable or configure one command group on a controller.

GROUP is a catalog group name as printed by "scanctl catalog groups", for
example "X_FF_Reset" or "X_04_RO_ON | X_05_RO_OFF". Quote names containing
spaces. A zero --delay uses the group default; an empty --option selects
the group's first option.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			st := registry.CommandState{
				Enabled:     !disable,
				Option:      strings.ToUpper(option),
				Repetitions: reps,
				Delay:       delay,
			}
			return a.svc.SetCommandState(cmd.Context(), opts.actor(), args[0], args[1], st)
		},
	}
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the group instead of enabling it")
	cmd.Flags().StringVarP(&option, "option", "o", "", "Option label (ON, OFF, HIGH, ...)")
	cmd.Flags().IntVarP(&reps, "repetitions", "r", 0, "Repetitions for repeatable groups (0 = group default)")
	cmd.Flags().DurationVarP(&delay, "delay", "d", 0, "Delay between frames (0 = group default)")
	return cmd
}

// enabledGroups returns the names of the controller's enabled groups.
func enabledGroups(c registry.Controller) []string {
	var out []string
	for name, st := range c.Commands {
		if st.Enabled {
			out = append(out, name)
		}
	}
	return out
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
