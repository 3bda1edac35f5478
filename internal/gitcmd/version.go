package gitcmd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// Version is the parsed output of "git --version".
type Version struct {
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Agent     string `json:"agent,omitempty"`
	Installed bool   `json:"installed"`
}

// Semver returns the version in x/mod/semver form, e.g. "v2.43.0".
func (v Version) Semver() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is installed and not older than min, given as
// "2.30" or "v2.30.1".
func (v Version) AtLeast(min string) bool {
	if !v.Installed {
		return false
	}
	if !strings.HasPrefix(min, "v") {
		min = "v" + min
	}
	if !semver.IsValid(min) {
		return false
	}
	return semver.Compare(v.Semver(), min) >= 0
}

// String renders the version like git does, or "not installed".
func (v Version) String() string {
	if !v.Installed {
		return "not installed"
	}
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Agent != "" {
		s += " " + v.Agent
	}
	return s
}

var versionOutput = regexp.MustCompile(`version (\d+)\.(\d+)(?:\.(\d+))?(.*)$`)

// GitVersion resolves to the version of the configured binary. A binary that
// cannot be spawned resolves to a Version with Installed unset.
func GitVersion() *task.Task {
	return task.NewText([]string{"--version"}, parseVersion).
		WithOnError(func(result *task.ExecResult, err error) ([]byte, error) {
			if result.SpawnErr != nil {
				return nil, nil
			}
			return nil, err
		})
}

func parseVersion(stdout string) (any, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return Version{}, nil
	}

	m := versionOutput.FindStringSubmatch(stdout)
	if m == nil {
		return nil, fmt.Errorf("unrecognized version output %q", stdout)
	}

	v := Version{Installed: true, Agent: strings.TrimLeft(strings.TrimSpace(m[4]), ".")}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	return v, nil
}
