package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Format: format, Output: &buf}), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug shows everything", LevelDebug, true, true, true},
		{"info hides debug", LevelInfo, false, true, true},
		{"warn hides info", LevelWarn, false, false, true},
		{"error hides warn", LevelError, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(tt.level, FormatText)

			logger.Debug("debug-line")
			logger.Info("info-line")
			logger.Warn("warn-line")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug-line"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info-line"))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, "warn-line"))
		})
	}
}

func TestJSONFormatOutput(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.Named("scheduler").Info("Attempting", "id", 3)

	entry := decodeLine(t, buf)
	assert.Equal(t, "Attempting", entry["msg"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.EqualValues(t, 3, entry["id"])
}

func TestWithTask(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.WithTask(task.Straight("rev-parse", "--show-toplevel")).Info("spawn")

	entry := decodeLine(t, buf)
	assert.Equal(t, "rev-parse --show-toplevel", entry["task"])
}

func TestWithTaskNil(t *testing.T) {
	logger := Nop()
	assert.Same(t, logger, logger.WithTask(nil))
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		checks map[string]string
	}{
		{
			name:   "plain error",
			err:    fmt.Errorf("exit status 128"),
			checks: map[string]string{"error": "exit status 128"},
		},
		{
			name: "plugin error",
			err:  errors.NewPluginError(task.Straight("fetch"), errors.PluginTimeout, "block timeout reached"),
			checks: map[string]string{
				"error":       "block timeout reached",
				"error_code":  "PLUGIN-002",
				"error_kind":  "plugin",
				"plugin":      "timeout",
				"failed_task": "fetch",
			},
		},
		{
			name: "fatal error with cause",
			err:  errors.NewFatalError(nil, fmt.Errorf("bad parser")),
			checks: map[string]string{
				"error_code": "EXEC-001",
				"error_kind": "fatal",
				"cause":      "bad parser",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(LevelInfo, FormatJSON)

			logger.WithError(tt.err).Error("task failed")

			entry := decodeLine(t, buf)
			for key, want := range tt.checks {
				assert.Equal(t, want, entry[key], key)
			}
		})
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := Nop()
	assert.Same(t, logger, logger.WithError(nil))
}

func TestEnabled(t *testing.T) {
	logger, _ := newBufferLogger(LevelWarn, FormatText)

	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("console"))
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "text", FormatText.String())
}

func TestDefaultConfigs(t *testing.T) {
	assert.Equal(t, LevelWarn, DefaultConfig().Level)
	assert.Equal(t, LevelDebug, DevelopmentConfig().Level)
	assert.True(t, DevelopmentConfig().AddSource)
	assert.NotNil(t, New(Config{}).Config().Output)
}
