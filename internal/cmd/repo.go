package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gitpipe/internal/executor"
	"github.com/felixgeelhaar/gitpipe/internal/gitcmd"
	"github.com/felixgeelhaar/gitpipe/internal/version"
)

var checkRepoCmd = &cobra.Command{
	Use:   "check-repo [dir]",
	Short: "Report whether a directory is inside a git repository",
	Long: `Print "true" when dir (default: the current directory) is inside a git
work tree, "false" otherwise. With --bare, report whether it is a bare
repository instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckRepo,
}

var gitVersionCmd = &cobra.Command{
	Use:   "git-version",
	Short: "Print the version of the configured git binary",
	Args:  cobra.NoArgs,
	RunE:  runGitVersion,
}

var (
	checkRepoBare  bool
	gitVersionJSON bool
)

func init() {
	checkRepoCmd.Flags().BoolVar(&checkRepoBare, "bare", false, "check for a bare repository")
	gitVersionCmd.Flags().BoolVar(&gitVersionJSON, "json", false, "output the parsed version as JSON")

	rootCmd.AddCommand(checkRepoCmd)
	rootCmd.AddCommand(gitVersionCmd)
}

func runCheckRepo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	chain := s.exec.Chain()
	if len(args) == 1 {
		chain.Push(ctx, gitcmd.Cwd(args[0]))
	}

	action := gitcmd.CheckRepoTree
	if checkRepoBare {
		action = gitcmd.CheckRepoBare
	}
	isRepo, err := executor.Await[bool](ctx, chain.Push(ctx, gitcmd.CheckIsRepo(action)))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), isRepo)
	return nil
}

func runGitVersion(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := executor.Await[gitcmd.Version](cmd.Context(), s.exec.Push(cmd.Context(), gitcmd.GitVersion()))
	if err != nil {
		return err
	}

	if gitVersionJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal git version: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), v)
	if v.Installed && !v.AtLeast(version.MinimumGit) {
		fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render(
			fmt.Sprintf("warning: git %s is older than %s", v, version.MinimumGit)))
	}
	return nil
}
