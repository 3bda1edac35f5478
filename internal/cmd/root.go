package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gitpipe/internal/config"
	"github.com/felixgeelhaar/gitpipe/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "gitpipe",
	Short: "Serialized, concurrency-bounded git command runner",
	Long: `gitpipe runs git commands through an executor that serializes tasks per
chain, bounds how many git processes run at once and passes every command
through a set of safety and timing plugins.

Configuration is read from the file given with --config (YAML or TOML) and
overridden by GITPIPE_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFile string
	logLevel   string
	logFormat  string

	// lookupEnv is replaced in tests.
	lookupEnv = os.LookupEnv
)

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. Cancelling ctx aborts every
// queued and running git process.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")
}

// loadConfig returns the effective configuration: the defaults or the
// --config file, then the environment, then the global flags.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return loaded, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(lookupEnv); err != nil {
			return cfg, err
		}
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cmd *cobra.Command, cfg config.Config) *log.Logger {
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return log.New(lc)
}
