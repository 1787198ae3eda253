package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/netif"
	"github.com/nerrad567/scanctl/internal/protocol"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the controller command catalog",
	}

	commands := &cobra.Command{
		Use:   "commands",
		Short: "List firmware commands and their codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmds := protocol.Commands()
			rows := make([][]string, 0, len(cmds))
			for _, c := range cmds {
				rows = append(rows, []string{fmt.Sprintf("0x%02X", c.Code), c.Name})
			}
			return renderTable(cmd.OutOrStdout(), []string{"CODE", "NAME"}, rows)
		},
	}

	groups := &cobra.Command{
		Use:   "groups",
		Short: "List configurable command groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gs := protocol.Groups()
			rows := make([][]string, 0, len(gs))
			for _, g := range gs {
				labels := make([]string, len(g.Options))
				for i, o := range g.Options {
					labels[i] = o.Label
				}
				reps := "-"
				if g.Repeatable {
					reps = strconv.Itoa(g.DefaultRepetitions)
				}
				rows = append(rows, []string{
					g.Name,
					string(g.Kind),
					strings.Join(labels, "/"),
					reps,
					g.DefaultDelay.String(),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"GROUP", "KIND", "OPTIONS", "REPS", "DELAY"}, rows)
		},
	}

	cmd.AddCommand(commands, groups)
	return cmd
}

func newAdaptersCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "adapters",
		Short: "List wired network adapters controllers can be reached through",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			filter := netif.Filter{
				ExcludePrefixes: cfg.Network.ExcludePrefixes,
				ExcludeKeywords: cfg.Network.ExcludeKeywords,
				IncludeDown:     all,
			}
			adapters, err := filter.Adapters()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(adapters))
			for _, ad := range adapters {
				name := ad.Name
				if name == cfg.Network.Interface {
					name += " " + okStyle.Render("(default)")
				}
				rows = append(rows, []string{name, ad.HardwareAddr, strconv.Itoa(ad.Index), onOff(ad.Up)})
			}
			return renderTable(cmd.OutOrStdout(), []string{"NAME", "HARDWARE ADDRESS", "INDEX", "UP"}, rows)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include adapters that are down")
	return cmd
}
