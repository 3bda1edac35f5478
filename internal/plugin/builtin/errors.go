package builtin

import (
	"bytes"
	stderrors "errors"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/plugin"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// ErrorDetector classifies a terminated process. err is the classification
// so far; returning nil reports success.
type ErrorDetector func(err error, result *task.ExecResult) error

// IsTaskError is the default failure predicate: a non-zero exit code with
// something written to stderr.
func IsTaskError(result *task.ExecResult) bool {
	return result.ExitCode != 0 && result.HasStderr()
}

// DefaultErrorDetector reports stdout and stderr as the error message of a
// failed process. An existing error, such as a hook's cancellation, is
// never replaced.
func DefaultErrorDetector(err error, result *task.ExecResult) error {
	if err != nil || !IsTaskError(result) {
		return err
	}
	message := make([][]byte, 0, len(result.Stdout)+len(result.Stderr))
	message = append(message, result.Stdout...)
	message = append(message, result.Stderr...)
	return stderrors.New(string(bytes.Join(message, nil)))
}

// ErrorDetection installs detector as an error hook. Plain errors it
// returns become process errors attributed to the task.
func ErrorDetection(detector ErrorDetector) plugin.Plugin {
	if detector == nil {
		return nil
	}
	return plugin.ErrorPlugin{Classify: func(err error, c plugin.ErrorContext) error {
		classified := detector(err, c.Result)
		if classified == nil {
			return nil
		}
		if _, ok := errors.AsGitError(classified); ok {
			return classified
		}
		processErr := errors.NewProcessError(c.Task, classified.Error())
		processErr.Cause = classified
		return processErr
	}}
}
