package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates an invalid configuration file or task
	ConfigError = 3

	// GitFailed indicates git itself reported an error
	GitFailed = 4

	// Cancelled indicates a task was cancelled by a plugin (abort, timeout, unsafe arguments)
	Cancelled = 5

	// BinaryNotFound indicates the git binary could not be spawned
	BinaryNotFound = 6

	// Interrupted indicates the run was stopped by SIGINT or SIGTERM
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if gitErr, ok := errors.AsGitError(err); ok {
		switch gitErr.Kind {
		case errors.KindConfiguration:
			return ConfigError
		case errors.KindProcess:
			// only spawn failures carry a cause
			if gitErr.Cause != nil {
				return BinaryNotFound
			}
			return GitFailed
		case errors.KindPlugin:
			if gitErr.Plugin == errors.PluginAbort && stderrors.Is(gitErr.Cause, context.Canceled) {
				return Interrupted
			}
			return Cancelled
		default:
			return GeneralError
		}
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	// Usage errors surfaced by cobra are plain strings
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Configuration error"
	case GitFailed:
		return "Git reported an error"
	case Cancelled:
		return "Task cancelled"
	case BinaryNotFound:
		return "Git binary not found"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
