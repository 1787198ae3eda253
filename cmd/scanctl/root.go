package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/infrastructure/config"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	operator   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "scanctl",
		Short: "Layer-2 scan-unit controller console",
		Long: `scanctl - operator console for Layer-2 scan-unit controllers.

Controllers are addressed by hardware address and driven with raw Ethernet
frames carrying one-byte commands. scanctl keeps each controller's command
selections, the ten scan unit bindings and the macro libraries, and sends
them on request.

Configuration is read from --config, the SCANCTL_CONFIG environment
variable, or configs/config.yaml when present. Without a file the built-in
defaults apply and SCANCTL_* variables still override them.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file path")
	pf.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	pf.StringVar(&opts.operator, "operator", "", "Operator name recorded in the audit log (default: current user)")

	cmd.AddCommand(
		newServeCmd(opts),
		newControllersCmd(opts),
		newUnitsCmd(opts),
		newMacrosCmd(opts),
		newSendCmd(opts),
		newBroadcastCmd(opts),
		newCatalogCmd(),
		newAdaptersCmd(opts),
		newHistoryCmd(opts),
		newAuditCmd(opts),
		newOperatorsCmd(opts),
		newTokenCmd(opts),
		newDBCmd(opts),
	)
	return cmd
}

// resolveConfigPath returns the config file to load, or "" for built-in
// defaults. The --config flag wins over SCANCTL_CONFIG; the default path
// is only used when the file exists.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv(config.EnvConfigPath); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// loadConfig loads and validates the configuration, applying --log-level.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// actor identifies the person running a CLI command.
func (o *rootOptions) actor() console.Actor {
	name := o.operator
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		} else {
			name = os.Getenv("USER")
		}
	}
	return console.Actor{Operator: name, Source: console.SourceCLI}
}
