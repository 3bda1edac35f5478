package builtin

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

// TimeoutOptions configures the block timeout.
type TimeoutOptions struct {
	// Block is the longest a process may go without the watched streams
	// producing output. Zero disables the timeout.
	Block time.Duration

	// Stdout and Stderr select which streams reset the timer.
	Stdout bool
	Stderr bool
}

// Timeout kills processes that stay silent for longer than opts.Block.
func Timeout(opts TimeoutOptions, clock clockwork.Clock) plugin.Plugin {
	if opts.Block <= 0 {
		return nil
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return plugin.AfterSpawnPlugin{Action: func(c *plugin.AfterSpawnContext) {
		stopped := make(chan struct{})
		var once sync.Once
		stop := func() { once.Do(func() { close(stopped) }) }

		timer := clock.AfterFunc(opts.Block, func() {
			select {
			case <-c.Process.Exited():
				return
			case <-stopped:
				return
			default:
			}
			stop()
			c.Kill(errors.NewPluginError(c.Task, errors.PluginTimeout, "block timeout reached"))
		})

		wait := func([]byte) {
			select {
			case <-stopped:
			default:
				timer.Reset(opts.Block)
			}
		}
		if opts.Stdout {
			c.Process.OnStdout(wait)
		}
		if opts.Stderr {
			c.Process.OnStderr(wait)
		}

		go func() {
			select {
			case <-c.Process.Exited():
				timer.Stop()
				stop()
			case <-stopped:
			}
		}()
	}}
}
