package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CompletionFlag is written as false, true or a grace period in
// milliseconds.
type CompletionFlag struct {
	Enabled bool
	DelayMS int
}

// Delay returns the grace period.
func (f CompletionFlag) Delay() time.Duration {
	return time.Duration(f.DelayMS) * time.Millisecond
}

// String renders the flag the way it is written in configuration files.
func (f CompletionFlag) String() string {
	switch {
	case !f.Enabled:
		return "false"
	case f.DelayMS == 0:
		return "true"
	default:
		return strconv.Itoa(f.DelayMS)
	}
}

func (f *CompletionFlag) set(v any) error {
	switch val := v.(type) {
	case bool:
		*f = CompletionFlag{Enabled: val}
	case int:
		return f.setMillis(int64(val))
	case int64:
		return f.setMillis(val)
	default:
		return fmt.Errorf("completion flag must be a boolean or milliseconds, got %T", v)
	}
	return nil
}

func (f *CompletionFlag) setMillis(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("completion delay must not be negative, got %d", ms)
	}
	*f = CompletionFlag{Enabled: true, DelayMS: int(ms)}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *CompletionFlag) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		return f.set(b)
	case "!!int":
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		return f.set(n)
	default:
		return fmt.Errorf("line %d: completion flag must be a boolean or milliseconds, got %q", value.Line, value.Value)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (f CompletionFlag) MarshalYAML() (any, error) {
	if !f.Enabled || f.DelayMS == 0 {
		return f.Enabled, nil
	}
	return f.DelayMS, nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (f *CompletionFlag) UnmarshalTOML(v any) error {
	return f.set(v)
}

// MarshalTOML implements toml.Marshaler.
func (f CompletionFlag) MarshalTOML() ([]byte, error) {
	return []byte(f.String()), nil
}
