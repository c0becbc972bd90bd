package tui

import tea "github.com/charmbracelet/bubbletea"

// Page represents a top-level kiosk screen (scan, verify, enroll, demo).
type Page interface {
	ID() string
	Title() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
}

// inputPage is implemented by pages with text inputs. While Typing is true
// the quit key is delivered to the page.
type inputPage interface {
	Typing() bool
}
