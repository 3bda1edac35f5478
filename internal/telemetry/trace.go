package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// TracerName is the instrumentation scope of task spans.
const TracerName = "github.com/felixgeelhaar/gitpipe/executor"

// StartTaskSpan starts the span covering one task attempt. Spans are named
// after the git command, e.g. "git.fetch", and local tasks use "git.local".
//
// Usage:
//
//	ctx, span := telemetry.StartTaskSpan(ctx, tracer, t, entry.Name)
//	defer span.End()
func StartTaskSpan(ctx context.Context, tracer trace.Tracer, t *task.Task, entry string) (context.Context, trace.Span) {
	name := "git.local"
	if !t.IsLocal() {
		name = "git." + t.Name()
	}

	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("git.command", t.String()),
		attribute.String("gitpipe.task", entry),
		attribute.Bool("gitpipe.local", t.IsLocal()),
	))
}

// RecordResult attaches the process outcome to span.
func RecordResult(span trace.Span, result *task.ExecResult) {
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("process.exit_code", result.ExitCode),
		attribute.Int("process.stdout_bytes", len(result.StdoutBytes())),
		attribute.Int("process.stderr_bytes", len(result.StderrBytes())),
	)
}

// RecordSuccess marks a span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on span and sets error status. GitErrors also
// contribute their code and kind.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	if gitErr, ok := errors.AsGitError(err); ok {
		span.SetAttributes(
			attribute.String("error.code", string(gitErr.Code)),
			attribute.String("error.kind", gitErr.Kind.String()),
		)
		if gitErr.Plugin != "" {
			span.SetAttributes(attribute.String("error.plugin", gitErr.Plugin))
		}
		span.SetStatus(codes.Error, gitErr.Message)
		return
	}
	span.SetStatus(codes.Error, err.Error())
}
