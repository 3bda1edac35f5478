// Package task describes a single unit of work for the executor: either an
// invocation of the git binary or a local mutation of the chain it runs on.
package task

import (
	"bytes"
	"strings"
)

// Format selects how captured stdout is handed to a task's parser.
type Format int

const (
	// FormatText passes stdout as text.
	FormatText Format = iota
	// FormatBytes passes stdout untouched.
	FormatBytes
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Parser decodes captured output into the caller's result.
type Parser func(stdout, stderr []byte) (any, error)

// FailureHandler is consulted when a task's outcome has been classified as an
// error. Returning a nil error downgrades the failure: the returned bytes are
// parsed in place of the captured stdout.
type FailureHandler func(result *ExecResult, err error) ([]byte, error)

// Workspace is the view of an execution chain that local tasks may mutate.
type Workspace interface {
	Dir() string
	SetDir(dir string)
	Env() map[string]string
}

// LocalFunc is the body of a task that runs without spawning a process.
type LocalFunc func(ws Workspace) (any, error)

// Task is an immutable description of one unit of work.
type Task struct {
	// Commands are the arguments passed to the binary. Empty for local tasks.
	Commands []string

	// Format selects text or byte output.
	Format Format

	// Parser decodes stdout and stderr once the process completed.
	Parser Parser

	// Local runs instead of a process when Commands is empty.
	Local LocalFunc

	// OnError may convert a classified failure into a successful result.
	OnError FailureHandler

	// ConfigErr is set when the task could never be valid.
	ConfigErr error
}

// IsLocal reports whether the task runs without an external process.
func (t *Task) IsLocal() bool {
	return len(t.Commands) == 0
}

// Name is the first command or "empty" for local tasks.
func (t *Task) Name() string {
	if len(t.Commands) == 0 {
		return "empty"
	}
	return t.Commands[0]
}

// String returns the task's command line
func (t *Task) String() string {
	if t.IsLocal() {
		return "<local>"
	}
	args := make([]string, len(t.Commands))
	for i, arg := range t.Commands {
		if path, ok := IsPathSpec(arg); ok {
			arg = path
		}
		args[i] = arg
	}
	return strings.Join(args, " ")
}

// NewText creates a task whose parser receives stdout as text.
func NewText(commands []string, parse func(stdout string) (any, error)) *Task {
	return &Task{
		Commands: copyArgs(commands),
		Format:   FormatText,
		Parser: func(stdout, _ []byte) (any, error) {
			return parse(string(stdout))
		},
	}
}

// NewBytes creates a task whose parser receives the raw output streams.
func NewBytes(commands []string, parser Parser) *Task {
	return &Task{
		Commands: copyArgs(commands),
		Format:   FormatBytes,
		Parser:   parser,
	}
}

// Straight creates a task resolving to the trimmed stdout of the command.
func Straight(commands ...string) *Task {
	return NewText(commands, func(stdout string) (any, error) {
		return strings.TrimSpace(stdout), nil
	})
}

// NewLocal creates a task that runs fn against the chain instead of a process.
func NewLocal(fn LocalFunc) *Task {
	return &Task{
		Format: FormatText,
		Local:  fn,
	}
}

// NewConfigurationError creates a task that fails before reaching a chain.
func NewConfigurationError(err error) *Task {
	return &Task{ConfigErr: err}
}

// WithOnError returns a copy of t using handler for classified failures.
func (t *Task) WithOnError(handler FailureHandler) *Task {
	c := *t
	c.Commands = copyArgs(t.Commands)
	c.OnError = handler
	return &c
}

func copyArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	copy(out, args)
	return out
}

// ExecResult is the raw outcome of running a task's process.
type ExecResult struct {
	// ExitCode of the process, -1 if it never started.
	ExitCode int

	// Stdout chunks in arrival order.
	Stdout [][]byte

	// Stderr chunks in arrival order.
	Stderr [][]byte

	// Rejection is the reason a hook cancelled the task, if any.
	Rejection error

	// SpawnErr is set when the process could not be created.
	SpawnErr error
}

// StdoutBytes concatenates the captured stdout chunks.
func (r *ExecResult) StdoutBytes() []byte {
	return bytes.Join(r.Stdout, nil)
}

// StderrBytes concatenates the captured stderr chunks.
func (r *ExecResult) StderrBytes() []byte {
	return bytes.Join(r.Stderr, nil)
}

// HasStderr reports whether any stderr output was captured.
func (r *ExecResult) HasStderr() bool {
	for _, chunk := range r.Stderr {
		if len(chunk) > 0 {
			return true
		}
	}
	return false
}
