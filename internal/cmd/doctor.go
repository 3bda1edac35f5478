package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gitpipe/internal/health"
	"github.com/felixgeelhaar/gitpipe/internal/version"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the git binary, configuration and base repository",
	Long: `Run health checks against the effective configuration:

  configuration     the configuration is valid and no unsafe option is enabled
  git-binary        the configured binary runs and is at least the minimum version
  base-repository   base_dir is inside a git work tree

Exits non-zero when any check is unhealthy.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorJSON bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output results as JSON")

	rootCmd.AddCommand(doctorCmd)
}

var statusStyles = map[health.Status]lipgloss.Style{
	health.StatusHealthy:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	health.StatusDegraded:  warningStyle,
	health.StatusUnhealthy: errorTitleStyle,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	manager := health.NewManager()
	manager.AddChecker(health.NewConfigChecker(cfg))
	manager.AddChecker(health.NewGitChecker(s.exec, version.MinimumGit))
	manager.AddChecker(health.NewRepoChecker(s.exec))

	reports := manager.Check(cmd.Context())
	overall := health.OverallStatus(reports)

	if doctorJSON {
		data, err := json.MarshalIndent(struct {
			Status  health.Status   `json:"status"`
			Reports []health.Report `json:"checks"`
		}{overall, reports}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal health reports: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printReports(cmd.OutOrStdout(), reports, overall)
	}

	if overall == health.StatusUnhealthy {
		return fmt.Errorf("health check failed: %s", overall)
	}
	return nil
}

func printReports(w io.Writer, reports []health.Report, overall health.Status) {
	for _, r := range reports {
		style := statusStyles[r.Result.Status]
		fmt.Fprintf(w, "%-16s %s %s\n", r.Name, style.Render(fmt.Sprintf("%-9s", r.Result.Status)), r.Result.Message)

		keys := make([]string, 0, len(r.Result.Details))
		for k := range r.Result.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %v\n", errorCodeStyle.Render(k+":"), r.Result.Details[k])
		}
	}
	fmt.Fprintf(w, "\n%s %s\n", headerStyle.Render("overall:"), statusStyles[overall].Render(overall.String()))
}
