package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid     ErrorCode = "CONFIG-001"
	ErrCodeConfigTask        ErrorCode = "CONFIG-002"
	ErrCodeConfigUnmarshal   ErrorCode = "CONFIG-003"
	ErrCodeConfigFileMissing ErrorCode = "CONFIG-004"

	// Process errors (PROC-001 to PROC-099)
	ErrCodeProcessFailed ErrorCode = "PROC-001"

	// Plugin errors (PLUGIN-001 to PLUGIN-099)
	ErrCodePluginAbort   ErrorCode = "PLUGIN-001"
	ErrCodePluginTimeout ErrorCode = "PLUGIN-002"
	ErrCodePluginUnsafe  ErrorCode = "PLUGIN-003"
	ErrCodePluginBinary  ErrorCode = "PLUGIN-004"
	ErrCodePluginOther   ErrorCode = "PLUGIN-099"

	// Execution errors (EXEC-001 to EXEC-099)
	ErrCodeExecFatal ErrorCode = "EXEC-001"
)

// Kind groups error codes by how the executor propagates them.
type Kind int

const (
	// KindConfiguration means the task could never be valid.
	KindConfiguration Kind = iota
	// KindProcess means the process exited with a classified-error outcome.
	KindProcess
	// KindPlugin means a hook cancelled the task.
	KindPlugin
	// KindFatal means the task attempt failed unexpectedly and purged its chain.
	KindFatal
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProcess:
		return "process"
	case KindPlugin:
		return "plugin"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Plugin names used by cancellation errors.
const (
	PluginAbort   = "abort"
	PluginTimeout = "timeout"
	PluginUnsafe  = "unsafe"
	PluginBinary  = "binary"
	// PluginOther attributes cancellations raised with a plain error.
	PluginOther = "other"
)

// GitError is the error type returned for every failed task.
type GitError struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Task        *task.Task
	Plugin      string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *GitError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil && e.Cause.Error() != e.Message {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *GitError) Unwrap() error {
	return e.Cause
}

// Is matches another GitError by code, so sentinel comparisons work
// regardless of message or task.
func (e *GitError) Is(target error) bool {
	t, ok := target.(*GitError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithSuggestion adds a suggestion to the error
func (e *GitError) WithSuggestion(suggestion string) *GitError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithTask attributes the error to t if it is not attributed yet.
func (e *GitError) WithTask(t *task.Task) *GitError {
	if e.Task == nil {
		e.Task = t
	}
	return e
}

// New creates a new GitError
func New(code ErrorCode, kind Kind, message string) *GitError {
	return &GitError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a new GitError wrapping an existing error
func Wrap(code ErrorCode, kind Kind, message string, cause error) *GitError {
	return &GitError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError creates an error for a task or executor that could
// never be valid.
func NewConfigurationError(message string) *GitError {
	return New(ErrCodeConfigInvalid, KindConfiguration, message)
}

// NewTaskConfigurationError attributes a builder's validation failure to t.
func NewTaskConfigurationError(t *task.Task, cause error) *GitError {
	err := Wrap(ErrCodeConfigTask, KindConfiguration, cause.Error(), cause)
	err.Task = t
	return err
}

// NewProcessError creates an error for a process that exited with a
// classified-error outcome.
func NewProcessError(t *task.Task, message string) *GitError {
	err := New(ErrCodeProcessFailed, KindProcess, message)
	err.Task = t
	return err
}

// NewPluginError creates the error a hook raises to cancel a task.
func NewPluginError(t *task.Task, plugin, message string) *GitError {
	code := ErrCodePluginOther
	switch plugin {
	case PluginAbort:
		code = ErrCodePluginAbort
	case PluginTimeout:
		code = ErrCodePluginTimeout
	case PluginUnsafe:
		code = ErrCodePluginUnsafe
	case PluginBinary:
		code = ErrCodePluginBinary
	}
	err := New(code, KindPlugin, message)
	err.Task = t
	err.Plugin = plugin
	return err
}

// NewFatalError wraps an unexpected failure of a task attempt. A cause that
// already is a GitError keeps its code and is only re-attributed.
func NewFatalError(t *task.Task, cause error) *GitError {
	var gitErr *GitError
	if stderrors.As(cause, &gitErr) {
		return gitErr.WithTask(t)
	}

	msg := "task attempt failed"
	if cause != nil {
		msg = cause.Error()
	}
	err := Wrap(ErrCodeExecFatal, KindFatal, msg, cause)
	err.Task = t
	return err
}

// AsGitError returns the GitError in err's chain, if any.
func AsGitError(err error) (*GitError, bool) {
	var gitErr *GitError
	if stderrors.As(err, &gitErr) {
		return gitErr, true
	}
	return nil, false
}

// IsKind reports whether err is a GitError of the given kind.
func IsKind(err error, kind Kind) bool {
	gitErr, ok := AsGitError(err)
	return ok && gitErr.Kind == kind
}

// IsPlugin reports whether err was raised by the named plugin.
func IsPlugin(err error, plugin string) bool {
	gitErr, ok := AsGitError(err)
	return ok && gitErr.Kind == KindPlugin && gitErr.Plugin == plugin
}

// Common error constructors for frequently used errors

// NewBinaryNotFoundError creates an error for a git binary that cannot be
// spawned.
func NewBinaryNotFoundError(t *task.Task, binary string, cause error) *GitError {
	err := Wrap(ErrCodeProcessFailed, KindProcess, fmt.Sprintf("unable to spawn %s", binary), cause).
		WithSuggestion("Check that git is installed and on your PATH").
		WithSuggestion("Set 'binary' in the gitpipe configuration to the git executable")
	err.Task = t
	return err
}

// NewConfigFileError creates an error for a configuration file that could not
// be parsed.
func NewConfigFileError(path, format string, cause error) *GitError {
	return Wrap(ErrCodeConfigUnmarshal, KindConfiguration, fmt.Sprintf("failed to parse %s config file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
