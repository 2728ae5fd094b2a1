package commands

import (
	"fmt"

	"bank-dashboard/internal/buildinfo"
	"bank-dashboard/pkg/config"
	"bank-dashboard/pkg/logging"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	backendURL string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "bank-dashboard",
		Short:   "Bank transactions dashboard",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file to read (ignored when missing)")
	flags.StringVar(&opts.backendURL, "backend-url", "", "transactions backend base URL")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newListCommand(opts))

	return rootCmd
}

// load resolves the configuration for cmd, applies the shared flags and any
// command-specific overrides, validates it, and installs the global logger.
func (o *rootOptions) load(cmd *cobra.Command, overrides ...func(*config.Config)) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Changed("backend-url") {
		cfg.Backend.URL = o.backendURL
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	for _, apply := range overrides {
		apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	logging.SetGlobal(logger)

	return cfg, logger, nil
}
