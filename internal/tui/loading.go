package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorBlue)),
	)
}

// renderProgress draws a text progress bar for percent in [0, 100].
func renderProgress(percent, width int) string {
	if width < 4 {
		width = 4
	}
	percent = min(max(percent, 0), 100)
	filled := width * percent / 100
	return lipgloss.NewStyle().Foreground(ColorGreen).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(ColorGray).Render(strings.Repeat("░", width-filled))
}

