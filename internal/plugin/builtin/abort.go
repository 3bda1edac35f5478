package builtin

import (
	"context"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

// Abort cancels tasks once ctx is done: before spawning when it is already
// done, and by killing the live process when it ends mid-run.
func Abort(ctx context.Context) []plugin.Plugin {
	if ctx == nil {
		return nil
	}

	return []plugin.Plugin{
		plugin.BeforeSpawnPlugin{Action: func(c *plugin.BeforeSpawnContext) {
			if ctx.Err() != nil {
				c.Kill(errors.NewPluginError(c.Task, errors.PluginAbort, "Abort already signaled"))
			}
		}},
		plugin.AfterSpawnPlugin{Action: func(c *plugin.AfterSpawnContext) {
			if ctx.Err() != nil {
				c.Kill(errors.NewPluginError(c.Task, errors.PluginAbort, "Abort signal received"))
				return
			}
			go func() {
				select {
				case <-ctx.Done():
					c.Kill(errors.NewPluginError(c.Task, errors.PluginAbort, "Abort signal received"))
				case <-c.Process.Exited():
				}
			}()
		}},
	}
}
