package runner

import (
	"time"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
)

// DefaultQuiet is how long the runner waits for output that may still be
// buffered when a process terminated without writing anything.
const DefaultQuiet = 50 * time.Millisecond

// DefaultExitGrace is the grace period applied to the exit signal by default.
const DefaultExitGrace = 50 * time.Millisecond

// Signal configures one termination notification.
type Signal struct {
	Enabled bool
	Grace   time.Duration
}

// Disabled ignores the notification.
func Disabled() Signal { return Signal{} }

// Immediate resolves as soon as the notification fires.
func Immediate() Signal { return Signal{Enabled: true} }

// After resolves grace after the notification fired.
func After(grace time.Duration) Signal {
	if grace < 0 {
		grace = 0
	}
	return Signal{Enabled: true, Grace: grace}
}

// Completion decides when a process's output is considered final. The first
// enabled signal to resolve wins.
type Completion struct {
	// OnClose fires when the process exited and both streams reached EOF.
	OnClose Signal

	// OnExit fires when the process exited, possibly before its streams
	// were drained.
	OnExit Signal

	// Quiet is counted from the first enabled notification and waited out
	// when no output had arrived by then.
	Quiet time.Duration
}

// DefaultCompletion resolves on stream closure, or 50ms after exit.
func DefaultCompletion() Completion {
	return Completion{
		OnClose: Immediate(),
		OnExit:  After(DefaultExitGrace),
		Quiet:   DefaultQuiet,
	}
}

// Validate rejects configurations that could never complete.
func (c Completion) Validate() error {
	if !c.OnClose.Enabled && !c.OnExit.Enabled {
		return errors.NewConfigurationError("completion: at least one of on_close and on_exit must be enabled")
	}
	if c.Quiet < 0 {
		return errors.NewConfigurationError("completion: quiet period must not be negative")
	}
	return nil
}
