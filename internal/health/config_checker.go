package health

import (
	"context"

	"github.com/felixgeelhaar/gitpipe/internal/config"
)

// ConfigChecker validates the effective configuration and flags unsafe
// options.
type ConfigChecker struct {
	cfg config.Config
}

// NewConfigChecker creates a checker for cfg.
func NewConfigChecker(cfg config.Config) *ConfigChecker {
	return &ConfigChecker{cfg: cfg}
}

// Name returns the name of this health check.
func (c *ConfigChecker) Name() string {
	return "configuration"
}

// Check is unhealthy for an invalid configuration and degraded when any
// unsafe option is enabled.
func (c *ConfigChecker) Check(ctx context.Context) *Result {
	if err := c.cfg.Validate(); err != nil {
		return Unhealthy("configuration is invalid").
			WithDetail("error", err.Error())
	}

	var unsafe []string
	if c.cfg.Unsafe.AllowUnsafeCustomBinary {
		unsafe = append(unsafe, "allow_unsafe_custom_binary")
	}
	if c.cfg.Unsafe.AllowUnsafeProtocolOverride {
		unsafe = append(unsafe, "allow_unsafe_protocol_override")
	}
	if c.cfg.Unsafe.AllowUnsafePack {
		unsafe = append(unsafe, "allow_unsafe_pack")
	}
	if len(unsafe) > 0 {
		return Degraded("unsafe operations are enabled").
			WithDetail("unsafe", unsafe)
	}

	return Healthy("configuration is valid").
		WithDetail("max_concurrent_processes", c.cfg.MaxConcurrentProcesses)
}
