// Package runner spawns the git process for one task, collects its output
// and decides when that output is final.
//
// Process exit and stream closure are observed as two independent signals.
// Either may fire first: a process can exit while a grandchild still holds
// its output pipes open, and the last chunk of output can arrive after the
// exit notification. Completion configures which signals count and how long
// to wait after each.
package runner

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/metrics"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// NotSpawnedExitCode is reported for tasks cancelled before their process
// was created.
const NotSpawnedExitCode = 9901

// DefaultKillGrace is how long a process may ignore the interrupt sent on
// cancellation before it is killed.
const DefaultKillGrace = 2 * time.Second

// Spec describes one process to run.
type Spec struct {
	Binary  string
	Args    []string
	Options plugin.SpawnOptions

	// Context is handed to the spawn hooks.
	Context plugin.Context

	// BeforeSpawn and AfterSpawn are typically bound to a plugin.Registry.
	BeforeSpawn func(c *plugin.BeforeSpawnContext)
	AfterSpawn  func(c *plugin.AfterSpawnContext)
}

// Runner executes Specs.
type Runner struct {
	completion Completion
	killGrace  time.Duration
	clock      clockwork.Clock
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger.Named("runner")
	}
}

// WithMetrics records spawns and exit codes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithClock sets the clock used for grace and quiet periods.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithKillGrace sets how long an interrupted process may keep running before
// it is killed.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.killGrace = d
		}
	}
}

// New creates a runner finalizing output according to completion.
func New(completion Completion, opts ...Option) (*Runner, error) {
	if err := completion.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		completion: completion,
		killGrace:  DefaultKillGrace,
		clock:      clockwork.NewRealClock(),
		logger:     log.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Completion returns the runner's completion configuration.
func (r *Runner) Completion() Completion {
	return r.completion
}

// Run spawns the process described by spec and blocks until its output is
// final. It never returns nil: spawn failures and cancellations are reported
// through the result.
func (r *Runner) Run(ctx context.Context, spec Spec) *task.ExecResult {
	logger := r.logger.WithTask(spec.Context.Task)

	var mu sync.Mutex
	var rejection error
	reject := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if rejection == nil {
			rejection = err
		}
	}
	rejected := func() error {
		mu.Lock()
		defer mu.Unlock()
		return rejection
	}

	if ctx.Err() != nil {
		reject(errors.NewPluginError(spec.Context.Task, errors.PluginAbort, "Abort already signaled"))
	} else if spec.BeforeSpawn != nil {
		spec.BeforeSpawn(plugin.NewBeforeSpawnContext(spec.Context, spec.Options.Clone(), reject))
	}
	if err := rejected(); err != nil {
		logger.Debug("Cancelled before spawn", "reason", err.Error())
		return &task.ExecResult{ExitCode: NotSpawnedExitCode, Rejection: err}
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Options.Dir
	cmd.Env = buildEnvironment(spec.Options.Env)
	if err := setCredential(cmd, spec.Options); err != nil {
		return spawnFailure(err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return spawnFailure(err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return spawnFailure(err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	logger.Debug("Spawning", "binary", spec.Binary, "args", spec.Args, "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		logger.Debug("Spawn failed", "error", err.Error())
		return spawnFailure(err)
	}
	// The child holds its own copies; ours must go so EOF can be observed.
	closeAll(stdoutW, stderrW)

	p := newProcess(cmd.Process.Pid)
	r.metrics.ObserveSpawn(spec.Context.Method())

	var interrupt sync.Once
	kill := func(err error) {
		reject(err)
		interrupt.Do(func() {
			logger.Debug("Killing process", "pid", p.pid, "reason", err.Error())
			if sigErr := cmd.Process.Signal(os.Interrupt); sigErr != nil {
				_ = cmd.Process.Kill()
				return
			}
			r.clock.AfterFunc(r.killGrace, func() {
				select {
				case <-p.exited:
				default:
					logger.Debug("Process ignored interrupt", "pid", p.pid)
					_ = cmd.Process.Kill()
				}
			})
		})
	}

	if spec.AfterSpawn != nil {
		spec.AfterSpawn(plugin.NewAfterSpawnContext(spec.Context, p, kill))
	}

	p.drained.Add(2)
	go p.read(stdoutR, false)
	go p.read(stderrR, true)
	go func() {
		_ = cmd.Wait()
		p.exitCode = cmd.ProcessState.ExitCode()
		close(p.exited)
		p.drained.Wait()
		close(p.closed)
	}()

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			kill(errors.NewPluginError(spec.Context.Task, errors.PluginAbort, "Abort signal received"))
		case <-finished:
		}
	}()

	r.awaitCompletion(p)
	close(finished)

	// Anything still unread belongs to a process that is no longer ours.
	closeAll(stdoutR, stderrR)

	stdout, stderr := p.snapshot()
	result := &task.ExecResult{
		ExitCode:  p.exitCode,
		Stdout:    stdout,
		Stderr:    stderr,
		Rejection: rejected(),
	}

	r.metrics.ObserveExit(result.ExitCode)
	logger.Debug("Finalized",
		"pid", p.pid,
		"exit_code", result.ExitCode,
		"stdout_chunks", len(stdout),
		"stderr_chunks", len(stderr))
	return result
}

// awaitCompletion blocks until the first enabled signal resolved. When
// nothing had been written by the time the first enabled notification fired,
// it also waits until the quiet period, counted from that notification, is
// over.
func (r *Runner) awaitCompletion(p *process) {
	stop := make(chan struct{})
	defer close(stop)

	onClose := r.arm(r.completion.OnClose, p.closed, stop)
	onExit := r.arm(r.completion.OnExit, p.exited, stop)
	quiet := r.armQuiet(p, stop)

	select {
	case <-onClose:
	case <-onExit:
	}

	if p.hasData() {
		return
	}
	<-quiet
}

// armQuiet returns a channel closed once the quiet period following the first
// enabled notification elapsed, or right at that notification if output had
// already arrived.
func (r *Runner) armQuiet(p *process, stop <-chan struct{}) <-chan struct{} {
	var closed, exited <-chan struct{}
	if r.completion.OnClose.Enabled {
		closed = p.closed
	}
	if r.completion.OnExit.Enabled {
		exited = p.exited
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-closed:
		case <-exited:
		case <-stop:
			return
		}

		if !p.hasData() && r.completion.Quiet > 0 {
			timer := r.clock.NewTimer(r.completion.Quiet)
			defer timer.Stop()
			select {
			case <-timer.Chan():
			case <-stop:
				return
			}
		}
		close(done)
	}()
	return done
}

// arm returns a channel closed once event fired and the signal's grace
// period elapsed. Disabled signals return nil, which never fires in a select.
func (r *Runner) arm(sig Signal, event <-chan struct{}, stop <-chan struct{}) <-chan struct{} {
	if !sig.Enabled {
		return nil
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-event:
		case <-stop:
			return
		}

		if sig.Grace > 0 {
			timer := r.clock.NewTimer(sig.Grace)
			defer timer.Stop()
			select {
			case <-timer.Chan():
			case <-stop:
				return
			}
		}
		close(done)
	}()
	return done
}

func spawnFailure(err error) *task.ExecResult {
	return &task.ExecResult{
		ExitCode: -1,
		Stderr:   [][]byte{[]byte(err.Error())},
		SpawnErr: err,
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// buildEnvironment overlays env on the host environment. A nil env inherits
// the host environment unchanged.
func buildEnvironment(env map[string]string) []string {
	if env == nil {
		return nil
	}

	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			merged[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range env {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
