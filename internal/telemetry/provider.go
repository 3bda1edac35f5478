// Package telemetry builds the OpenTelemetry tracer provider used to trace
// task attempts.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ShutdownFunc flushes and stops a provider.
type ShutdownFunc func(context.Context) error

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
)

// circuitBreaker stops export attempts after repeated failures until
// resetTimeout elapsed.
type circuitBreaker struct {
	mu               sync.Mutex
	clock            clockwork.Clock
	failureThreshold int
	resetTimeout     time.Duration
	failures         int
	openedAt         time.Time
	state            breakerState
}

func newCircuitBreaker(clock clockwork.Clock) *circuitBreaker {
	return &circuitBreaker{
		clock:            clock,
		failureThreshold: 5,
		resetTimeout:     30 * time.Second,
	}
}

// allow reports whether an export may be attempted. An open breaker lets one
// probe through once resetTimeout elapsed.
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerClosed {
		return true
	}
	return cb.clock.Since(cb.openedAt) > cb.resetTimeout
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = breakerClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.failureThreshold || cb.state == breakerOpen {
		cb.state = breakerOpen
		cb.openedAt = cb.clock.Now()
	}
}

// retryingExporter retries failed exports with exponential backoff behind a
// circuit breaker, so an unreachable collector never stalls task execution.
type retryingExporter struct {
	exporter sdktrace.SpanExporter
	breaker  *circuitBreaker
	clock    clockwork.Clock

	initialInterval time.Duration
	maxInterval     time.Duration
	maxAttempts     int
}

func newRetryingExporter(exporter sdktrace.SpanExporter, clock clockwork.Clock) *retryingExporter {
	return &retryingExporter{
		exporter:        exporter,
		breaker:         newCircuitBreaker(clock),
		clock:           clock,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     2 * time.Second,
		maxAttempts:     5,
	}
}

func (e *retryingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if !e.breaker.allow() {
		return fmt.Errorf("circuit breaker open: too many export failures")
	}

	interval := e.initialInterval
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = e.exporter.ExportSpans(ctx, spans)
		if lastErr == nil {
			e.breaker.recordSuccess()
			return nil
		}
		if attempt == e.maxAttempts {
			break
		}

		timer := e.clock.NewTimer(interval)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			e.breaker.recordFailure()
			return ctx.Err()
		}
		interval = min(interval*3/2, e.maxInterval)
	}

	e.breaker.recordFailure()
	return fmt.Errorf("export failed after %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *retryingExporter) Shutdown(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

func newResource(cfg Config) (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
}

func sampler(rate float64) sdktrace.Sampler {
	if rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// NewProvider builds a tracer provider for cfg. A disabled configuration
// yields a noop provider. The provider is not installed globally.
func NewProvider(ctx context.Context, cfg Config) (trace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}

	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(
			newRetryingExporter(exporter, clockwork.NewRealClock()),
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	return tp, tp.Shutdown, nil
}
