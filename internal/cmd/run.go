package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gitpipe/internal/executor"
	"github.com/felixgeelhaar/gitpipe/internal/gitcmd"
	"github.com/felixgeelhaar/gitpipe/internal/progress"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <git args>",
	Short: "Run a single git command through the executor",
	Long: `Run one git command with every configured plugin applied and print its
trimmed output.

Examples:
  # Show the status of another repository
  gitpipe run --dir ../other -- status --short

  # Kill the fetch if git is silent for 30 seconds
  gitpipe run --timeout 30s --progress -- fetch origin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runDir         string
	runTimeout     time.Duration
	runConcurrency int
	runProgress    bool
	runGitConfig   []string
)

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory for git")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "kill git after this long without output (0 disables)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "maximum concurrent git processes (overrides config)")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "print progress of clone, fetch, pull, push and checkout to stderr")
	runCmd.Flags().StringArrayVarP(&runGitConfig, "git-config", "c", nil, "extra key=value passed as -c to git (repeatable)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTimeout > 0 {
		cfg.Timeout.BlockMS = int(runTimeout.Milliseconds())
	}
	if runConcurrency > 0 {
		cfg.MaxConcurrentProcesses = runConcurrency
	}
	cfg.Config = append(cfg.Config, runGitConfig...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var opts []executor.Option
	if runProgress {
		indicator := progress.NewIndicator(progress.Config{Writer: cmd.ErrOrStderr()})
		defer indicator.Stop()
		opts = append(opts, executor.WithProgress(indicator.Update))
	}

	s, err := newSession(cmd, cfg, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	chain := s.exec.Chain()
	if runDir != "" {
		chain.Push(ctx, gitcmd.Cwd(runDir))
	}

	out, err := executor.Await[string](ctx, chain.Push(ctx, gitcmd.Raw(args...)))
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}
