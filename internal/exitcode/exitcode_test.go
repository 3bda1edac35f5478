package exitcode

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"ConfigError", ConfigError, 3},
		{"GitFailed", GitFailed, 4},
		{"Cancelled", Cancelled, 5},
		{"BinaryNotFound", BinaryNotFound, 6},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tk := task.Straight("fetch")

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "configuration error",
			err:      errors.NewConfigurationError("max_concurrent_processes must be positive"),
			expected: ConfigError,
		},
		{
			name:     "task configuration error",
			err:      errors.NewTaskConfigurationError(tk, stderrors.New("no commands")),
			expected: ConfigError,
		},
		{
			name:     "git failure",
			err:      errors.NewProcessError(tk, "fatal: not a git repository"),
			expected: GitFailed,
		},
		{
			name:     "wrapped git failure",
			err:      fmt.Errorf("batch: %w", errors.NewProcessError(tk, "fatal: bad revision")),
			expected: GitFailed,
		},
		{
			name:     "binary not found",
			err:      errors.NewBinaryNotFoundError(tk, "git", stderrors.New("exec: not found")),
			expected: BinaryNotFound,
		},
		{
			name:     "timeout plugin",
			err:      errors.NewPluginError(tk, errors.PluginTimeout, "block timeout"),
			expected: Cancelled,
		},
		{
			name:     "unsafe plugin",
			err:      errors.NewPluginError(tk, errors.PluginUnsafe, "unsafe argument"),
			expected: Cancelled,
		},
		{
			name: "abort from interrupt",
			err: func() error {
				e := errors.NewPluginError(tk, errors.PluginAbort, "aborted")
				e.Cause = context.Canceled
				return e
			}(),
			expected: Interrupted,
		},
		{
			name:     "fatal error",
			err:      errors.NewFatalError(tk, stderrors.New("task panicked: boom")),
			expected: GeneralError,
		},
		{
			name:     "plain context cancellation",
			err:      context.Canceled,
			expected: Interrupted,
		},
		{
			name:     "unknown flag",
			err:      stderrors.New("unknown flag: --frobnicate"),
			expected: UsageError,
		},
		{
			name:     "wrong arg count",
			err:      stderrors.New("accepts 1 arg(s), received 2"),
			expected: UsageError,
		},
		{
			name:     "generic error",
			err:      stderrors.New("something went wrong"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineExitCode(tt.err)
			if got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{UsageError, "Usage error (invalid flags or arguments)"},
		{ConfigError, "Configuration error"},
		{GitFailed, "Git reported an error"},
		{Cancelled, "Task cancelled"},
		{BinaryNotFound, "Git binary not found"},
		{Interrupted, "Interrupted"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := GetExitCodeDescription(tt.code)
			if got != tt.expected {
				t.Errorf("GetExitCodeDescription(%d) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}
