package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gitpipe/internal/config"
	"github.com/felixgeelhaar/gitpipe/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create gitpipe configuration",
	Long: `Inspect the effective gitpipe configuration.

The effective configuration is the defaults, overlaid by the file passed
with --config, then by GITPIPE_* environment variables, then by the global
--log-level and --log-format flags.

Examples:
  # View the effective configuration
  gitpipe config view

  # Same, as TOML
  gitpipe config view --format toml

  # Get a specific value
  gitpipe config get max_concurrent_processes

  # Write a default configuration file
  gitpipe config init gitpipe.yaml
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  `Retrieve the value of a configuration key using dot notation (e.g., timeout.block_ms).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default configuration to a file",
	Long:  `Write the default configuration to path. The format follows the extension (.yaml, .yml or .toml).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

var (
	configViewFormat string
	configInitForce  bool
)

func init() {
	configViewCmd.Flags().StringVar(&configViewFormat, "format", "yaml", "output format: yaml, toml")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format := config.FormatYAML
	switch strings.ToLower(configViewFormat) {
	case "yaml", "yml":
	case "toml":
		format = config.FormatTOML
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unsupported format %q", configViewFormat)).
			WithSuggestion("Valid values: yaml, toml")
	}

	data, err := config.Encode(cfg, format)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if configFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# Configuration file: %s\n", configFile)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	value, err := getNestedValue(cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := config.DetectFormat(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return errors.NewConfigurationError(fmt.Sprintf("%s already exists", path)).
			WithSuggestion("Pass --force to overwrite it")
	}

	data, err := config.Encode(config.Default(), format)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

// getNestedValue retrieves a value from the config using dot notation
func getNestedValue(cfg config.Config, key string) (string, error) {
	switch key {
	case "binary":
		return strings.Join(cfg.Binary, " "), nil
	case "base_dir":
		return cfg.BaseDir, nil
	case "max_concurrent_processes":
		return strconv.Itoa(cfg.MaxConcurrentProcesses), nil
	case "config":
		return strings.Join(cfg.Config, "\n"), nil
	case "trimmed":
		return strconv.FormatBool(cfg.Trimmed), nil
	case "timeout.block_ms":
		return strconv.Itoa(cfg.Timeout.BlockMS), nil
	case "timeout.stdout":
		return strconv.FormatBool(cfg.Timeout.Stdout), nil
	case "timeout.stderr":
		return strconv.FormatBool(cfg.Timeout.Stderr), nil
	case "completion.on_close":
		return cfg.Completion.OnClose.String(), nil
	case "completion.on_exit":
		return cfg.Completion.OnExit.String(), nil
	case "unsafe.allow_unsafe_custom_binary":
		return strconv.FormatBool(cfg.Unsafe.AllowUnsafeCustomBinary), nil
	case "unsafe.allow_unsafe_protocol_override":
		return strconv.FormatBool(cfg.Unsafe.AllowUnsafeProtocolOverride), nil
	case "unsafe.allow_unsafe_pack":
		return strconv.FormatBool(cfg.Unsafe.AllowUnsafePack), nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.format":
		return cfg.Log.Format, nil
	case "telemetry.enabled":
		return strconv.FormatBool(cfg.Telemetry.Enabled), nil
	case "telemetry.endpoint":
		return cfg.Telemetry.Endpoint, nil
	case "telemetry.sample_rate":
		return strconv.FormatFloat(cfg.Telemetry.SampleRate, 'g', -1, 64), nil
	}

	if name, ok := strings.CutPrefix(key, "env."); ok {
		return cfg.Env[name], nil
	}
	return "", errors.NewConfigurationError(fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Run 'gitpipe config view' to list all keys")
}
