package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/fingervote/internal/demo"
	"github.com/tinytelemetry/fingervote/internal/scanpoll"
)

var (
	ColorNavy   = lipgloss.Color("#1E2A4A")
	ColorWhite  = lipgloss.Color("#FFFFFF")
	ColorGray   = lipgloss.Color("245")
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("#44CC44")
	ColorYellow = lipgloss.Color("#FFAA00")
	ColorRed    = lipgloss.Color("#FF4444")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite).Background(ColorNavy).Padding(0, 1)
	tabStyle   = lipgloss.NewStyle().Foreground(ColorGray).Padding(0, 1)
	activeTab  = lipgloss.NewStyle().Foreground(ColorWhite).Background(ColorBlue).Bold(true).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorNavy).Padding(1, 2)
	labelStyle = lipgloss.NewStyle().Bold(true)
	hiStyle    = lipgloss.NewStyle().Foreground(ColorNavy).Background(ColorGreen).Bold(true)
	cursorMark = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).Render("▶ ")
)

func toneColor(t scanpoll.Tone) lipgloss.Color {
	switch t {
	case scanpoll.ToneSuccess:
		return ColorGreen
	case scanpoll.ToneWarning:
		return ColorYellow
	case scanpoll.ToneDanger:
		return ColorRed
	default:
		return ColorBlue
	}
}

func renderStatus(v scanpoll.View) string {
	if v.Message == "" {
		return ""
	}
	return lipgloss.NewStyle().Foreground(toneColor(v.Tone)).Bold(true).Render(v.Message)
}

func toastColor(k demo.ToastKind) lipgloss.Color {
	switch k {
	case demo.ToastError:
		return ColorRed
	case demo.ToastWarning:
		return ColorYellow
	default:
		return ColorGreen
	}
}
