package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"labagent/internal/config"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	verbose    bool
	debug      bool
}

// flagKeys maps command-line flags onto config keys. Only flags defined on
// the executing command are bound.
var flagKeys = map[string]string{
	"workspace":    "workspace",
	"log-dir":      "log_dir",
	"subject":      "subject_id",
	"model":        "model",
	"max-turns":    "max_turns",
	"max-tokens":   "max_tokens",
	"metrics-file": "metrics_file",
	"addr":         "server.addr",
	"cors":         "server.cors",
	"poll":         "server.poll_interval",
}

// NewRootCommand builds the labagent command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "labagent",
		Short: "Run autonomous self-improvement sessions against a workspace",
		Long: `labagent runs one agent session at a time against a workspace directory.
Each session is recorded turn by turn in an append-only JSON log, and the
files the agent changed are reported when it finishes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default labagent.yaml in ., ~/.config/labagent or ~)")
	pf.StringP("workspace", "w", "", "workspace directory")
	pf.String("log-dir", "", "session log directory, relative to the workspace unless absolute")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "print a patch for every changed file")
	pf.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(
		newRunCommand(opts),
		newInspectCommand(opts),
		newSessionsCommand(opts),
		newSnapshotCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// loadConfig resolves and validates the configuration for cmd, with its
// flags taking precedence over the environment and config file.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	loadOpts := []config.Option{
		config.WithBinder(func(v *viper.Viper) error {
			for name, key := range flagKeys {
				flag := cmd.Flags().Lookup(name)
				if flag == nil {
					continue
				}
				if err := v.BindPFlag(key, flag); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	if o.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(o.configFile))
	}
	if o.debug {
		loadOpts = append(loadOpts, config.WithOverrides(map[string]any{"logging.level": "debug"}))
	}

	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
