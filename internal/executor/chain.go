package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"sync"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/ledger"
	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
	"github.com/felixgeelhaar/gitpipe/internal/plugin/builtin"
	"github.com/felixgeelhaar/gitpipe/internal/runner"
	"github.com/felixgeelhaar/gitpipe/internal/task"
	"github.com/felixgeelhaar/gitpipe/internal/telemetry"
)

// Task outcomes reported to metrics.
const (
	outcomeSuccess   = "success"
	outcomeConfig    = "config_error"
	outcomeCancelled = "cancelled"
	outcomeFatal     = "fatal"
	outcomePurged    = "purged"
)

var resolved = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Chain runs its tasks one after another in push order. A failed task does
// not stop the chain; a fatal one fails every task queued behind it.
type Chain struct {
	exec   *Executor
	ledger *ledger.Ledger
	logger *log.Logger

	mu   sync.Mutex
	tail chan struct{}
	dir  string
	env  map[string]string
}

func (e *Executor) newChain(dir string, env map[string]string) *Chain {
	logger := e.logger.Named("chain")
	return &Chain{
		exec: e,
		ledger: ledger.New(
			ledger.WithLogger(logger),
			ledger.WithMetrics(e.metrics),
			ledger.WithClock(e.clock)),
		logger: logger,
		tail:   resolved,
		dir:    dir,
		env:    maps.Clone(env),
	}
}

// Fork creates a chain running in dir that shares the scheduler and plugins
// but not the queue: tasks on the fork never wait for tasks on c.
func (c *Chain) Fork(dir string) *Chain {
	return c.exec.newChain(dir, c.Env())
}

// Dir is the working directory processes are spawned in.
func (c *Chain) Dir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// SetDir changes the working directory for tasks that have not spawned yet.
func (c *Chain) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = dir
}

// Env is a copy of the chain's environment overlay.
func (c *Chain) Env() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.env)
}

// Pending returns the number of tasks queued and not yet completed.
func (c *Chain) Pending() int {
	return c.ledger.Len()
}

// Push queues t behind every task pushed before it and returns its future.
// Cancelling ctx aborts t while it waits for a slot or runs.
func (c *Chain) Push(ctx context.Context, t *task.Task) *Future {
	if t == nil {
		return settledFuture(nil, errors.NewConfigurationError("cannot push a nil task"))
	}
	if t.ConfigErr != nil {
		c.exec.metrics.ObserveTask(t.Name(), outcomeConfig, 0)
		return settledFuture(nil, errors.NewTaskConfigurationError(t, t.ConfigErr))
	}

	entry := c.ledger.Push(t)
	f := newFuture()

	c.mu.Lock()
	prev := c.tail
	next := make(chan struct{})
	c.tail = next
	c.mu.Unlock()

	go func() {
		defer close(next)
		<-prev
		f.settle(c.attempt(ctx, entry))
	}()
	return f
}

// resetTail lets tasks pushed after a fatal error start without waiting for
// the purged ones.
func (c *Chain) resetTail() {
	c.mu.Lock()
	c.tail = resolved
	c.mu.Unlock()
	c.logger.Debug("Queue reset after fatal error")
}

func (c *Chain) attempt(ctx context.Context, entry *ledger.Entry) (any, error) {
	t := entry.Task
	logger := entry.Logger
	start := c.exec.clock.Now()

	if err := c.ledger.Attempt(entry); err != nil {
		logger.Debug("Skipped, chain failed earlier")
		c.exec.metrics.ObserveTask(t.Name(), outcomePurged, 0)
		return nil, err
	}

	ctx, span := telemetry.StartTaskSpan(ctx, c.exec.tracer, t, entry.Name)
	defer span.End()

	value, err := c.run(ctx, entry)
	outcome := outcomeSuccess

	switch {
	case err == nil:
		telemetry.RecordSuccess(span)
	case errors.IsKind(err, errors.KindPlugin):
		gitErr, _ := errors.AsGitError(err)
		logger.WithError(err).Debug("Cancelled")
		c.exec.metrics.ObserveCancellation(gitErr.Plugin)
		outcome = outcomeCancelled
	default:
		value, err = nil, errors.NewFatalError(t, err)
		c.ledger.Fatal(err, entry)
		c.resetTail()
		outcome = outcomeFatal
	}
	telemetry.RecordError(span, err)
	c.exec.metrics.ObserveTask(t.Name(), outcome, c.exec.clock.Since(start))
	return value, err
}

// run executes one task while holding a scheduler ticket. A panic in a
// parser, local task or hook is returned as an error.
func (c *Chain) run(ctx context.Context, entry *ledger.Entry) (value any, err error) {
	t := entry.Task
	defer c.ledger.Complete(entry)

	release, err := c.exec.scheduler.Admit(ctx)
	if err != nil {
		abort := errors.NewPluginError(t, errors.PluginAbort, "Abort signal received")
		abort.Cause = err
		return nil, abort
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("task panicked: %v", r)
		}
	}()

	if t.IsLocal() {
		entry.Logger.Debug("Running local task")
		if t.Local == nil {
			return nil, nil
		}
		return t.Local(c)
	}
	return c.runRemote(ctx, entry)
}

func (c *Chain) runRemote(ctx context.Context, entry *ledger.Entry) (any, error) {
	t := entry.Task
	logger := entry.Logger
	plugins := c.exec.plugins

	pc := plugin.Context{Ctx: ctx, Task: t, Commands: t.Commands}

	binary, err := plugins.Binary(builtin.DefaultBinary, pc)
	if err != nil {
		return nil, asPluginError(t, err)
	}
	args, err := plugins.Args(t.Commands, pc)
	if err != nil {
		return nil, asPluginError(t, err)
	}
	options := plugins.SpawnOptions(plugin.SpawnOptions{Dir: c.Dir(), Env: c.Env()}, pc)

	// Spawn and error hooks see the final argument list.
	spawned := pc
	spawned.Commands = args

	result := c.exec.runner.Run(ctx, runner.Spec{
		Binary:      binary,
		Args:        args,
		Options:     options,
		Context:     spawned,
		BeforeSpawn: plugins.BeforeSpawn,
		AfterSpawn:  plugins.AfterSpawn,
	})

	var classified error
	switch {
	case result.Rejection != nil:
		classified = asPluginError(t, result.Rejection)
	case result.SpawnErr != nil:
		classified = errors.NewBinaryNotFoundError(t, binary, result.SpawnErr)
	}
	classified = plugins.TaskError(classified, plugin.ErrorContext{Context: spawned, Result: result})

	stdout := result.StdoutBytes()
	if classified != nil {
		if t.OnError == nil {
			logger.WithError(classified).Debug("Task failed", "exit_code", result.ExitCode)
			return nil, classified
		}
		replacement, handlerErr := t.OnError(result, classified)
		if handlerErr != nil {
			logger.WithError(handlerErr).Debug("Failure handler kept the error", "exit_code", result.ExitCode)
			return nil, handlerErr
		}
		logger.Debug("Failure handler recovered the task", "exit_code", result.ExitCode)
		stdout = replacement
	}

	return c.parse(t, stdout, result.StderrBytes())
}

func (c *Chain) parse(t *task.Task, stdout, stderr []byte) (any, error) {
	if t.Parser == nil {
		return nil, nil
	}
	if t.Format == task.FormatText && c.exec.cfg.Trimmed {
		stdout = bytes.TrimSpace(stdout)
	}
	return t.Parser(stdout, stderr)
}

// asPluginError attributes a cancellation to t. Hooks may cancel with any
// error; plain errors become plugin errors so they stay task-local.
func asPluginError(t *task.Task, err error) error {
	var gitErr *errors.GitError
	if stderrors.As(err, &gitErr) {
		return gitErr.WithTask(t)
	}
	pluginErr := errors.NewPluginError(t, errors.PluginOther, err.Error())
	pluginErr.Cause = err
	return pluginErr
}
