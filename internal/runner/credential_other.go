//go:build !unix

package runner

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

func setCredential(_ *exec.Cmd, options plugin.SpawnOptions) error {
	if options.UID == nil && options.GID == nil {
		return nil
	}
	return fmt.Errorf("uid/gid spawn options are not supported on %s", runtime.GOOS)
}
