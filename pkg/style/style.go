// Package style holds the terminal styles for user-facing output.
package style

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	// Error renders fatal error lines on stderr.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	// Warning renders non-fatal notices.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Enabled reports whether styled output should be used for output.
// Pipes, redirects and NO_COLOR all disable styling.
func Enabled(output *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(output.Fd()) || isatty.IsCygwinTerminal(output.Fd())
}

// Render applies s to text when styling is enabled for output, and
// returns text unchanged otherwise.
func Render(s lipgloss.Style, text string, output *os.File) string {
	if !Enabled(output) {
		return text
	}
	return s.Render(text)
}
