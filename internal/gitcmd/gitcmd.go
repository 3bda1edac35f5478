// Package gitcmd builds tasks for a handful of git commands. Output parsing
// is deliberately shallow: each builder extracts only what callers of the
// executor need.
package gitcmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// Raw runs git with args and resolves to its trimmed stdout.
func Raw(args ...string) *task.Task {
	if len(args) == 0 {
		return task.NewConfigurationError(fmt.Errorf("raw: must supply one or more arguments to execute"))
	}
	return task.Straight(args...)
}

// Cwd is a local task switching the chain's working directory to dir. It
// fails when dir is not an existing directory.
func Cwd(dir string) *task.Task {
	if dir == "" {
		return task.NewConfigurationError(fmt.Errorf("cwd: directory must not be empty"))
	}
	return task.NewLocal(func(ws task.Workspace) (any, error) {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("cwd: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("cwd: %s is not a directory", dir)
		}
		ws.SetDir(dir)
		return dir, nil
	})
}

// CheckRepoAction selects what CheckIsRepo verifies.
type CheckRepoAction int

const (
	// CheckRepoTree reports whether the directory is inside a work tree.
	CheckRepoTree CheckRepoAction = iota
	// CheckRepoBare reports whether the directory is a bare repository.
	CheckRepoBare
)

const notARepository = "not a git repository"

// CheckIsRepo resolves to true when the chain's directory passes action. A
// directory outside any repository resolves to false instead of failing.
func CheckIsRepo(action CheckRepoAction) *task.Task {
	args := []string{"rev-parse", "--is-inside-work-tree"}
	if action == CheckRepoBare {
		args = []string{"rev-parse", "--is-bare-repository"}
	}

	return task.NewText(args, func(stdout string) (any, error) {
		return strings.TrimSpace(stdout) == "true", nil
	}).WithOnError(func(result *task.ExecResult, err error) ([]byte, error) {
		if strings.Contains(strings.ToLower(string(result.StderrBytes())), notARepository) {
			return []byte("false"), nil
		}
		return nil, err
	})
}
