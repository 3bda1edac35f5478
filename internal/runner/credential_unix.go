//go:build unix

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/felixgeelhaar/gitpipe/internal/plugin"
)

// setCredential runs the process as the configured uid/gid. A missing half
// falls back to the current process's id.
func setCredential(cmd *exec.Cmd, options plugin.SpawnOptions) error {
	if options.UID == nil && options.GID == nil {
		return nil
	}

	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())
	if options.UID != nil {
		uid = *options.UID
	}
	if options.GID != nil {
		gid = *options.GID
	}

	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Credential = &syscall.Credential{Uid: uid, Gid: gid}
	return nil
}
