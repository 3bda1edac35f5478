package telemetry

import (
	"context"
	stderrors "errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// setupTestTracer creates a test tracer with an in-memory exporter
func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exporter
}

func attr(stub tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range stub.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartTaskSpan(t *testing.T) {
	tp, exporter := setupTestTracer(t)
	tracer := tp.Tracer(TracerName)

	ctx := context.Background()
	spanCtx, span := StartTaskSpan(ctx, tracer, task.Straight("fetch", "origin"), "fetch#3")
	if spanCtx == ctx {
		t.Error("expected new context with span, got same context")
	}
	RecordResult(span, &task.ExecResult{ExitCode: 0, Stdout: [][]byte{[]byte("ok\n")}})
	RecordSuccess(span)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	stub := spans[0]
	if stub.Name != "git.fetch" {
		t.Errorf("span name = %q, want %q", stub.Name, "git.fetch")
	}
	if v, _ := attr(stub, "git.command"); v.AsString() != "fetch origin" {
		t.Errorf("git.command = %q", v.AsString())
	}
	if v, _ := attr(stub, "gitpipe.task"); v.AsString() != "fetch#3" {
		t.Errorf("gitpipe.task = %q", v.AsString())
	}
	if v, _ := attr(stub, "process.stdout_bytes"); v.AsInt64() != 3 {
		t.Errorf("process.stdout_bytes = %d, want 3", v.AsInt64())
	}
	if stub.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", stub.Status.Code)
	}
}

func TestStartTaskSpanLocal(t *testing.T) {
	tp, exporter := setupTestTracer(t)

	_, span := StartTaskSpan(context.Background(), tp.Tracer(TracerName), task.NewLocal(nil), "empty#1")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "git.local" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestRecordError(t *testing.T) {
	tp, exporter := setupTestTracer(t)
	tracer := tp.Tracer(TracerName)
	tk := task.Straight("clone")

	_, span := tracer.Start(context.Background(), "plugin")
	RecordError(span, errors.NewPluginError(tk, errors.PluginTimeout, "block timeout reached"))
	span.End()

	_, span = tracer.Start(context.Background(), "plain")
	RecordError(span, stderrors.New("boom"))
	span.End()

	_, span = tracer.Start(context.Background(), "nil")
	RecordError(span, nil)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	plugin := spans[0]
	if plugin.Status.Code != codes.Error || plugin.Status.Description != "block timeout reached" {
		t.Errorf("status = %+v", plugin.Status)
	}
	if v, _ := attr(plugin, "error.code"); v.AsString() != "PLUGIN-002" {
		t.Errorf("error.code = %q", v.AsString())
	}
	if v, _ := attr(plugin, "error.plugin"); v.AsString() != "timeout" {
		t.Errorf("error.plugin = %q", v.AsString())
	}
	if len(plugin.Events) != 1 {
		t.Errorf("expected one exception event, got %d", len(plugin.Events))
	}

	if spans[1].Status.Description != "boom" {
		t.Errorf("status = %+v", spans[1].Status)
	}
	if spans[2].Status.Code != codes.Unset {
		t.Errorf("nil error changed status to %v", spans[2].Status.Code)
	}
}
