package gitcmd

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// InitResult describes a repository created or reinitialized by Init.
type InitResult struct {
	Bare     bool   `json:"bare"`
	Existing bool   `json:"existing"`
	Path     string `json:"path"`
	GitDir   string `json:"git_dir"`
}

var initOutput = regexp.MustCompile(`^(Reinitialized|Initialized) (?:empty |existing )?(?:shared )?Git repository in (.+)$`)

// Init runs "git init" in the chain's directory, with --bare when bare is
// set. Extra arguments are passed after the command.
func Init(bare bool, args ...string) *task.Task {
	commands := []string{"init"}
	if bare {
		commands = append(commands, "--bare")
	}
	commands = append(commands, args...)

	return task.NewText(commands, func(stdout string) (any, error) {
		return parseInit(bare, stdout)
	})
}

func parseInit(bare bool, stdout string) (InitResult, error) {
	for _, line := range strings.Split(stdout, "\n") {
		m := initOutput.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		gitDir := strings.TrimRight(m[2], `/\`)
		result := InitResult{
			Bare:     bare,
			Existing: m[1] == "Reinitialized",
			GitDir:   gitDir,
			Path:     gitDir,
		}
		if !bare {
			result.Path = filepath.Dir(gitDir)
		}
		return result, nil
	}
	return InitResult{}, fmt.Errorf("unrecognized init output %q", strings.TrimSpace(stdout))
}
