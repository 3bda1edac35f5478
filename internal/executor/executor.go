// Package executor runs tasks against the git binary. Tasks pushed onto a
// Chain run one at a time in push order; all chains of an Executor share
// one scheduler bounding concurrent processes and one plugin registry.
package executor

import (
	"context"
	"maps"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/gitpipe/internal/config"
	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/metrics"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
	"github.com/felixgeelhaar/gitpipe/internal/plugin/builtin"
	"github.com/felixgeelhaar/gitpipe/internal/runner"
	"github.com/felixgeelhaar/gitpipe/internal/scheduler"
	"github.com/felixgeelhaar/gitpipe/internal/task"
	"github.com/felixgeelhaar/gitpipe/internal/telemetry"
)

// Executor owns the shared state of every chain it creates.
type Executor struct {
	cfg       config.Config
	scheduler *scheduler.Scheduler
	plugins   *plugin.Registry
	runner    *runner.Runner
	tracer    trace.Tracer
	logger    *log.Logger
	metrics   *metrics.Metrics
	clock     clockwork.Clock
	env       map[string]string

	chain *Chain
}

type options struct {
	logger         *log.Logger
	metrics        *metrics.Metrics
	tracerProvider trace.TracerProvider
	clock          clockwork.Clock
	plugins        []plugin.Plugin
	abort          context.Context
	progress       func(builtin.ProgressEvent)
	errorDetector  builtin.ErrorDetector
}

// Option configures an Executor.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records scheduler, task and process metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracerProvider traces every task attempt.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithClock sets the clock used by the scheduler, runner and timeout plugin.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithPlugins registers plugins after the built-in ones.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugins...)
	}
}

// WithAbort cancels every task once ctx is done.
func WithAbort(ctx context.Context) Option {
	return func(o *options) {
		o.abort = ctx
	}
}

// WithProgress reports progress of clone, fetch, pull, push and checkout.
func WithProgress(fn func(builtin.ProgressEvent)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithErrorDetector classifies process outcomes after the default detector.
func WithErrorDetector(detector builtin.ErrorDetector) Option {
	return func(o *options) {
		o.errorDetector = detector
	}
}

// New validates cfg and creates an executor with the built-in plugins it
// configures.
func New(cfg config.Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger: log.Nop(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = noop.NewTracerProvider()
	}

	run, err := runner.New(completionFrom(cfg.Completion),
		runner.WithLogger(o.logger),
		runner.WithMetrics(o.metrics),
		runner.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	e := &Executor{
		cfg: cfg,
		scheduler: scheduler.New(cfg.MaxConcurrentProcesses,
			scheduler.WithLogger(o.logger),
			scheduler.WithMetrics(o.metrics),
			scheduler.WithClock(o.clock)),
		plugins: plugin.NewRegistry(o.logger),
		runner:  run,
		tracer:  o.tracerProvider.Tracer(telemetry.TracerName),
		logger:  o.logger,
		metrics: o.metrics,
		clock:   o.clock,
	}
	if len(cfg.Env) > 0 {
		e.env = maps.Clone(cfg.Env)
	}

	if err := e.installPlugins(o); err != nil {
		return nil, err
	}

	e.chain = e.newChain(cfg.BaseDir, e.env)
	e.logger.Debug("Executor created",
		"binary", cfg.Binary,
		"base_dir", cfg.BaseDir,
		"max_concurrent_processes", e.scheduler.Concurrency(),
		"plugins", e.plugins.Len())
	return e, nil
}

// installPlugins registers the built-in plugins in pipeline order. The custom
// binary's argument prefix goes last so it precedes every injected argument.
func (e *Executor) installPlugins(o options) error {
	cfg := e.cfg

	e.plugins.Add(builtin.ConfigPrefix(cfg.Config))
	e.plugins.Add(builtin.BlockUnsafeOperations(builtin.UnsafeOptions{
		AllowUnsafeProtocolOverride: cfg.Unsafe.AllowUnsafeProtocolOverride,
		AllowUnsafePack:             cfg.Unsafe.AllowUnsafePack,
	}))
	if o.abort != nil {
		e.plugins.AddAll(builtin.Abort(o.abort)...)
	}
	if o.progress != nil {
		e.plugins.AddAll(builtin.Progress(o.progress)...)
	}
	e.plugins.Add(builtin.Timeout(builtin.TimeoutOptions{
		Block:  time.Duration(cfg.Timeout.BlockMS) * time.Millisecond,
		Stdout: cfg.Timeout.Stdout,
		Stderr: cfg.Timeout.Stderr,
	}, e.clock))
	e.plugins.Add(builtin.SpawnOptions(cfg.Spawn.UID, cfg.Spawn.GID))
	e.plugins.Add(builtin.SuffixPaths())
	e.plugins.Add(builtin.ErrorDetection(builtin.DefaultErrorDetector))
	e.plugins.Add(builtin.ErrorDetection(o.errorDetector))

	binary, err := builtin.CustomBinary(cfg.Binary, cfg.Unsafe.AllowUnsafeCustomBinary, e.logger)
	if err != nil {
		return err
	}
	e.plugins.AddAll(binary...)

	e.plugins.AddAll(o.plugins...)
	return nil
}

func completionFrom(c config.CompletionConfig) runner.Completion {
	signal := func(f config.CompletionFlag) runner.Signal {
		if !f.Enabled {
			return runner.Disabled()
		}
		return runner.After(f.Delay())
	}
	return runner.Completion{
		OnClose: signal(c.OnClose),
		OnExit:  signal(c.OnExit),
		Quiet:   runner.DefaultQuiet,
	}
}

// Chain creates a chain bound to the executor's base directory and
// environment.
func (e *Executor) Chain() *Chain {
	return e.newChain(e.cfg.BaseDir, e.env)
}

// Push runs t on the executor's default chain.
func (e *Executor) Push(ctx context.Context, t *task.Task) *Future {
	return e.chain.Push(ctx, t)
}

// Plugins returns the registry shared by every chain.
func (e *Executor) Plugins() *plugin.Registry {
	return e.plugins
}

// Scheduler returns the scheduler shared by every chain.
func (e *Executor) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Config returns the configuration the executor was created with.
func (e *Executor) Config() config.Config {
	return e.cfg
}

// Dir is the working directory of the default chain.
func (e *Executor) Dir() string {
	return e.chain.Dir()
}

// Env is a copy of the environment overlay, nil when the host environment is
// inherited unchanged.
func (e *Executor) Env() map[string]string {
	return e.chain.Env()
}
