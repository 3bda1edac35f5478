// Package config loads the gitpipe configuration from YAML or TOML files
// and the GITPIPE_* environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/log"
)

// DefaultMaxConcurrentProcesses bounds concurrent git processes when the
// configuration does not.
const DefaultMaxConcurrentProcesses = 2

// EnvPrefix prefixes environment overrides, e.g. GITPIPE_LOG_LEVEL.
const EnvPrefix = "GITPIPE_"

// Format represents the configuration file format
type Format int

const (
	// FormatYAML represents YAML format
	FormatYAML Format = iota
	// FormatTOML represents TOML format
	FormatTOML
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, errors.NewConfigurationError(fmt.Sprintf("unsupported config file extension %q", filepath.Ext(path))).
			WithSuggestion("Use a .yaml, .yml or .toml file")
	}
}

// Config is the full executor configuration.
type Config struct {
	// Binary is the git executable, optionally followed by one argument
	// inserted before every command (e.g. ["wsl", "git"]).
	Binary []string `yaml:"binary,omitempty" toml:"binary,omitempty"`

	// BaseDir is the working directory of the default chain.
	BaseDir string `yaml:"base_dir,omitempty" toml:"base_dir,omitempty"`

	// MaxConcurrentProcesses bounds how many git processes run at once.
	MaxConcurrentProcesses int `yaml:"max_concurrent_processes" toml:"max_concurrent_processes"`

	// Config entries are passed as "-c <entry>" to every command.
	Config []string `yaml:"config,omitempty" toml:"config,omitempty"`

	// Trimmed trims whitespace from text output before parsing.
	Trimmed bool `yaml:"trimmed" toml:"trimmed"`

	// Env overlays the host environment of every process.
	Env map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`

	Timeout    TimeoutConfig    `yaml:"timeout" toml:"timeout"`
	Completion CompletionConfig `yaml:"completion" toml:"completion"`
	Unsafe     UnsafeConfig     `yaml:"unsafe" toml:"unsafe"`
	Spawn      SpawnConfig      `yaml:"spawn" toml:"spawn"`
	Log        LogConfig        `yaml:"log" toml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" toml:"telemetry"`
}

// TimeoutConfig configures the block timeout.
type TimeoutConfig struct {
	// BlockMS kills a process silent for this many milliseconds. 0 disables.
	BlockMS int  `yaml:"block_ms" toml:"block_ms"`
	Stdout  bool `yaml:"stdout" toml:"stdout"`
	Stderr  bool `yaml:"stderr" toml:"stderr"`
}

// CompletionConfig selects which termination signals finalize output.
type CompletionConfig struct {
	OnClose CompletionFlag `yaml:"on_close" toml:"on_close"`
	OnExit  CompletionFlag `yaml:"on_exit" toml:"on_exit"`
}

// UnsafeConfig re-enables operations blocked by default.
type UnsafeConfig struct {
	AllowUnsafeCustomBinary     bool `yaml:"allow_unsafe_custom_binary" toml:"allow_unsafe_custom_binary"`
	AllowUnsafeProtocolOverride bool `yaml:"allow_unsafe_protocol_override" toml:"allow_unsafe_protocol_override"`
	AllowUnsafePack             bool `yaml:"allow_unsafe_pack" toml:"allow_unsafe_pack"`
}

// SpawnConfig runs processes under other credentials.
type SpawnConfig struct {
	UID *uint32 `yaml:"uid,omitempty" toml:"uid,omitempty"`
	GID *uint32 `yaml:"gid,omitempty" toml:"gid,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled" toml:"enabled"`
	Endpoint   string  `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	SampleRate float64 `yaml:"sample_rate" toml:"sample_rate"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		Binary:                 []string{"git"},
		MaxConcurrentProcesses: DefaultMaxConcurrentProcesses,
		Timeout: TimeoutConfig{
			Stdout: true,
			Stderr: true,
		},
		Completion: CompletionConfig{
			OnClose: CompletionFlag{Enabled: true},
			OnExit:  CompletionFlag{Enabled: true, DelayMS: 50},
		},
		Log: LogConfig{
			Level:  log.LevelWarn.String(),
			Format: log.FormatText.String(),
		},
		Telemetry: TelemetryConfig{
			SampleRate: 1.0,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	format, err := DetectFormat(path)
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, errors.Wrap(errors.ErrCodeConfigFileMissing, errors.KindConfiguration,
			fmt.Sprintf("config file not found: %s", path), err).
			WithSuggestion("Pass --config with an existing file or omit it to use defaults")
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeConfigInvalid, errors.KindConfiguration,
			fmt.Sprintf("failed to read config file: %s", path), err)
	}

	if err := Decode(data, format, &cfg); err != nil {
		return cfg, errors.NewConfigFileError(path, format.String(), err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode unmarshals data over cfg.
func Decode(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatTOML:
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// Encode marshals cfg in the given format.
func Encode(cfg Config, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	default:
		return yaml.Marshal(cfg)
	}
}

// ApplyEnv overrides fields from GITPIPE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "BINARY"); ok && v != "" {
		c.Binary = strings.Fields(v)
	}
	if v, ok := lookup(EnvPrefix + "BASE_DIR"); ok && v != "" {
		c.BaseDir = v
	}
	if v, ok := lookup(EnvPrefix + "MAX_CONCURRENT_PROCESSES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, errors.KindConfiguration,
				fmt.Sprintf("invalid %sMAX_CONCURRENT_PROCESSES %q", EnvPrefix, v), err)
		}
		c.MaxConcurrentProcesses = n
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate reports the first setting that can never work.
func (c Config) Validate() error {
	if len(c.Binary) > 2 {
		return errors.NewConfigurationError("binary accepts the executable and at most one prefix argument")
	}
	if c.MaxConcurrentProcesses < 1 {
		return errors.NewConfigurationError(fmt.Sprintf("max_concurrent_processes must be positive, got %d", c.MaxConcurrentProcesses))
	}
	if c.Timeout.BlockMS < 0 {
		return errors.NewConfigurationError("timeout.block_ms must not be negative")
	}
	if !c.Completion.OnClose.Enabled && !c.Completion.OnExit.Enabled {
		return errors.NewConfigurationError("completion: at least one of on_close and on_exit must be enabled")
	}
	if c.Completion.OnClose.DelayMS < 0 || c.Completion.OnExit.DelayMS < 0 {
		return errors.NewConfigurationError("completion delays must not be negative")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.NewConfigurationError("telemetry.sample_rate must be between 0 and 1")
	}
	for _, entry := range c.Config {
		if !strings.Contains(entry, "=") {
			return errors.NewConfigurationError(fmt.Sprintf("config entry %q must have the form key=value", entry))
		}
	}
	return nil
}

// LoggerConfig builds the logger configuration.
func (c Config) LoggerConfig() log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.Log.Level)
	cfg.Format = log.ParseFormat(c.Log.Format)
	return cfg
}
