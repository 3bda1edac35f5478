package health

import (
	"context"

	"github.com/felixgeelhaar/gitpipe/internal/executor"
	"github.com/felixgeelhaar/gitpipe/internal/gitcmd"
)

// GitChecker checks that the configured binary runs and is recent enough.
type GitChecker struct {
	exec    *executor.Executor
	minimum string
}

// NewGitChecker checks the binary of exec against the minimum version, given
// as "2.20".
func NewGitChecker(exec *executor.Executor, minimum string) *GitChecker {
	return &GitChecker{exec: exec, minimum: minimum}
}

// Name returns the name of this health check.
func (c *GitChecker) Name() string {
	return "git-binary"
}

// Check is healthy for a version at least the minimum, degraded for an older
// one and unhealthy when the binary cannot be run.
func (c *GitChecker) Check(ctx context.Context) *Result {
	binary := c.exec.Config().Binary

	chain := c.exec.Chain()
	v, err := executor.Await[gitcmd.Version](ctx, chain.Push(ctx, gitcmd.GitVersion()))
	if err != nil {
		return Unhealthy("failed to execute git").
			WithDetail("binary", binary).
			WithDetail("error", err.Error())
	}
	if !v.Installed {
		return Unhealthy("git binary not found").
			WithDetail("binary", binary).
			WithDetail("suggestion", "Install git or set 'binary' in the gitpipe configuration")
	}

	if c.minimum != "" && !v.AtLeast(c.minimum) {
		return Degraded("git is older than "+c.minimum).
			WithDetail("binary", binary).
			WithDetail("version", v.String()).
			WithDetail("suggestion", "Upgrade git to "+c.minimum+" or later")
	}

	return Healthy("git is installed").
		WithDetail("binary", binary).
		WithDetail("version", v.String())
}

// RepoChecker checks whether the executor's base directory is inside a
// work tree.
type RepoChecker struct {
	exec *executor.Executor
}

// NewRepoChecker creates a checker for exec's base directory.
func NewRepoChecker(exec *executor.Executor) *RepoChecker {
	return &RepoChecker{exec: exec}
}

// Name returns the name of this health check.
func (c *RepoChecker) Name() string {
	return "base-repository"
}

// Check is degraded outside a repository: only commands that create or clone
// repositories will succeed there.
func (c *RepoChecker) Check(ctx context.Context) *Result {
	dir := c.exec.Dir()
	chain := c.exec.Chain()

	isRepo, err := executor.Await[bool](ctx, chain.Push(ctx, gitcmd.CheckIsRepo(gitcmd.CheckRepoTree)))
	if err != nil {
		return Unhealthy("failed to inspect base directory").
			WithDetail("dir", dir).
			WithDetail("error", err.Error())
	}
	if !isRepo {
		return Degraded("base directory is not inside a git work tree").
			WithDetail("dir", dir)
	}
	return Healthy("base directory is a git work tree").
		WithDetail("dir", dir)
}
