// Package plugin implements the typed hook pipeline every remote task passes
// through: resolving the binary, rewriting arguments and spawn options,
// observing the process before and after it is spawned, and reclassifying
// the outcome once it terminated.
//
// The set of extension points is closed. Each point has its own concrete
// Plugin type carrying a function with a fixed signature, so a hook that does
// not match its point's contract does not compile.
package plugin

import (
	"context"

	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// Point identifies an extension point in the pipeline.
type Point int

const (
	// PointBinary resolves the executable to spawn.
	PointBinary Point = iota
	// PointArgs rewrites the argument list.
	PointArgs
	// PointSpawnOptions rewrites directory, environment and credentials.
	PointSpawnOptions
	// PointBeforeSpawn runs immediately before the process is created.
	PointBeforeSpawn
	// PointAfterSpawn runs with the live process.
	PointAfterSpawn
	// PointTaskError reclassifies the outcome of a terminated process.
	PointTaskError
)

// String returns the string representation of the point
func (p Point) String() string {
	switch p {
	case PointBinary:
		return "spawn.binary"
	case PointArgs:
		return "spawn.args"
	case PointSpawnOptions:
		return "spawn.options"
	case PointBeforeSpawn:
		return "spawn.before"
	case PointAfterSpawn:
		return "spawn.after"
	case PointTaskError:
		return "task.error"
	default:
		return "unknown"
	}
}

// Plugin is a hook bound to exactly one extension point. It is implemented
// only by the types in this package.
type Plugin interface {
	Point() Point
	sealed()
}

// Context is handed to every hook.
type Context struct {
	// Ctx is the context the task was pushed with.
	Ctx context.Context

	// Task being executed.
	Task *task.Task

	// Commands are the task's own commands for the rewrite points and the
	// final argument list once the process is about to be spawned.
	Commands []string
}

// Method is the git subcommand, e.g. "clone".
func (c Context) Method() string {
	if c.Task == nil {
		return ""
	}
	return c.Task.Name()
}

// SpawnOptions controls how the process is created.
type SpawnOptions struct {
	// Dir is the working directory.
	Dir string

	// Env overlays the host environment. Nil inherits it unchanged.
	Env map[string]string

	// UID and GID run the process under other credentials when set.
	UID *uint32
	GID *uint32
}

// Clone returns a copy that shares no mutable state with o.
func (o SpawnOptions) Clone() SpawnOptions {
	c := o
	if o.Env != nil {
		c.Env = make(map[string]string, len(o.Env))
		for k, v := range o.Env {
			c.Env[k] = v
		}
	}
	if o.UID != nil {
		uid := *o.UID
		c.UID = &uid
	}
	if o.GID != nil {
		gid := *o.GID
		c.GID = &gid
	}
	return c
}

// BeforeSpawnContext lets a hook cancel the task before a process exists.
type BeforeSpawnContext struct {
	Context
	Options SpawnOptions

	kill func(error)
}

// NewBeforeSpawnContext creates the context for the before-spawn point.
func NewBeforeSpawnContext(c Context, options SpawnOptions, kill func(error)) *BeforeSpawnContext {
	return &BeforeSpawnContext{Context: c, Options: options, kill: kill}
}

// Kill cancels the task with err. The process is never spawned.
func (c *BeforeSpawnContext) Kill(err error) {
	if c.kill != nil {
		c.kill(err)
	}
}

// Process is the view of a running process offered to after-spawn hooks.
type Process interface {
	// Pid of the spawned process.
	Pid() int

	// OnStdout subscribes fn to stdout chunks as they arrive.
	OnStdout(fn func(chunk []byte))

	// OnStderr subscribes fn to stderr chunks as they arrive.
	OnStderr(fn func(chunk []byte))

	// Exited is closed once the process has exited.
	Exited() <-chan struct{}

	// Closed is closed once both output streams reached EOF.
	Closed() <-chan struct{}
}

// AfterSpawnContext gives a hook the live process.
type AfterSpawnContext struct {
	Context
	Process Process

	kill func(error)
}

// NewAfterSpawnContext creates the context for the after-spawn point.
func NewAfterSpawnContext(c Context, process Process, kill func(error)) *AfterSpawnContext {
	return &AfterSpawnContext{Context: c, Process: process, kill: kill}
}

// Kill interrupts the process. Its eventual exit is reported as err.
func (c *AfterSpawnContext) Kill(err error) {
	if c.kill != nil {
		c.kill(err)
	}
}

// ErrorContext carries the terminated process's outcome.
type ErrorContext struct {
	Context
	Result *task.ExecResult
}

// BinaryPlugin resolves the executable. It receives the binary resolved so
// far and returns the replacement.
type BinaryPlugin struct {
	Resolve func(binary string, c Context) (string, error)
}

// ArgsPlugin rewrites the argument list. Returning an error cancels the task.
type ArgsPlugin struct {
	Resolve func(args []string, c Context) ([]string, error)
}

// SpawnOptionsPlugin rewrites the spawn options.
type SpawnOptionsPlugin struct {
	Resolve func(options SpawnOptions, c Context) SpawnOptions
}

// BeforeSpawnPlugin observes a task about to spawn.
type BeforeSpawnPlugin struct {
	Action func(c *BeforeSpawnContext)
}

// AfterSpawnPlugin observes the live process.
type AfterSpawnPlugin struct {
	Action func(c *AfterSpawnContext)
}

// ErrorPlugin reclassifies a terminated task. err is the classification so
// far, nil meaning success.
type ErrorPlugin struct {
	Classify func(err error, c ErrorContext) error
}

func (BinaryPlugin) Point() Point       { return PointBinary }
func (ArgsPlugin) Point() Point         { return PointArgs }
func (SpawnOptionsPlugin) Point() Point { return PointSpawnOptions }
func (BeforeSpawnPlugin) Point() Point  { return PointBeforeSpawn }
func (AfterSpawnPlugin) Point() Point   { return PointAfterSpawn }
func (ErrorPlugin) Point() Point        { return PointTaskError }

func (BinaryPlugin) sealed()       {}
func (ArgsPlugin) sealed()         {}
func (SpawnOptionsPlugin) sealed() {}
func (BeforeSpawnPlugin) sealed()  {}
func (AfterSpawnPlugin) sealed()   {}
func (ErrorPlugin) sealed()        {}
