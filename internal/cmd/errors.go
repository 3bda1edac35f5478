package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
)

var (
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)
	errorCodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)
)

// RenderError writes err to w. Task errors show their code, the failing
// command and any recovery suggestions.
func RenderError(w io.Writer, err error) {
	if err == nil {
		return
	}

	gitErr, ok := errors.AsGitError(err)
	if !ok {
		fmt.Fprintf(w, "%s %s\n", errorTitleStyle.Render("Error:"), err)
		return
	}

	fmt.Fprintf(w, "%s %s %s\n",
		errorTitleStyle.Render("Error:"),
		strings.TrimSpace(gitErr.Message),
		errorCodeStyle.Render("["+string(gitErr.Code)+"]"))

	if gitErr.Task != nil && !gitErr.Task.IsLocal() {
		fmt.Fprintf(w, "  %s git %s\n", errorCodeStyle.Render("command:"), gitErr.Task)
	}
	if gitErr.Plugin != "" {
		fmt.Fprintf(w, "  %s %s\n", errorCodeStyle.Render("plugin:"), gitErr.Plugin)
	}

	if len(gitErr.Suggestions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, suggestionStyle.Render("Suggestions:"))
		for _, s := range gitErr.Suggestions {
			fmt.Fprintf(w, "  • %s\n", s)
		}
	}
}
