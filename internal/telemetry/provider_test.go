package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewProviderDisabled(t *testing.T) {
	ctx := context.Background()
	tp, shutdown, err := NewProvider(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Errorf("provider = %T, want noop.TracerProvider", tp)
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestNewProviderEnabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.Endpoint = "collector.example.com:4318"
	config.SampleRate = 0.5

	ctx := context.Background()
	tp, shutdown, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider = %T, want *sdktrace.TracerProvider", tp)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

type flakyExporter struct {
	failures int32
	calls    atomic.Int32
}

func (e *flakyExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	if e.calls.Add(1) <= e.failures {
		return errors.New("collector unavailable")
	}
	return nil
}

func (e *flakyExporter) Shutdown(context.Context) error { return nil }

func exportAsync(e *retryingExporter) <-chan error {
	done := make(chan error, 1)
	go func() { done <- e.ExportSpans(context.Background(), nil) }()
	return done
}

func TestRetryingExporterRecovers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &flakyExporter{failures: 2}
	exporter := newRetryingExporter(inner, clock)

	done := exportAsync(exporter)
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			cancel()
			t.Fatalf("exporter never waited for a retry: %v", err)
		}
		cancel()
		clock.Advance(exporter.maxInterval)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ExportSpans failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ExportSpans never returned")
	}
	if got := inner.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestCircuitBreakerOpensAndProbes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := newCircuitBreaker(clock)

	for i := 0; i < cb.failureThreshold; i++ {
		if !cb.allow() {
			t.Fatalf("breaker opened after %d failures", i)
		}
		cb.recordFailure()
	}

	if cb.allow() {
		t.Fatal("breaker should be open")
	}

	clock.Advance(cb.resetTimeout + time.Second)
	if !cb.allow() {
		t.Fatal("breaker should let a probe through after the reset timeout")
	}

	cb.recordFailure()
	if cb.allow() {
		t.Fatal("failed probe should reopen the breaker")
	}

	clock.Advance(cb.resetTimeout + time.Second)
	cb.recordSuccess()
	if !cb.allow() {
		t.Fatal("successful probe should close the breaker")
	}
}

func TestRetryingExporterRejectsWhileOpen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	exporter := newRetryingExporter(&flakyExporter{}, clock)
	for i := 0; i < exporter.breaker.failureThreshold; i++ {
		exporter.breaker.recordFailure()
	}

	if err := exporter.ExportSpans(context.Background(), nil); err == nil {
		t.Fatal("expected circuit breaker error")
	}
}
