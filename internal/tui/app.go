package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// App is the top-level Bubble Tea model that routes between kiosk pages.
// Key presses go to the active page only; every other message reaches all
// pages so that timers and requests started on a page keep running while
// another page is shown.
type App struct {
	pages      []Page
	index      map[string]int
	activePage int
	width      int
	height     int
}

// NewApp creates a new App with the given pages. The first page is the default.
func NewApp(pages ...Page) *App {
	idx := make(map[string]int, len(pages))
	for i, p := range pages {
		idx[p.ID()] = i
	}
	return &App{pages: pages, index: idx}
}

// Active returns the ID of the page on screen.
func (a *App) Active() string {
	if len(a.pages) == 0 {
		return ""
	}
	return a.pages[a.activePage].ID()
}

func (a *App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(a.pages))
	for _, p := range a.pages {
		cmds = append(cmds, p.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(a.pages) == 0 {
		return a, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.ForceQuit) {
			return a, tea.Quit
		}
		switch {
		case key.Matches(msg, keys.NextPage):
			return a, a.switchTo((a.activePage + 1) % len(a.pages))
		case key.Matches(msg, keys.PrevPage):
			return a, a.switchTo((a.activePage + len(a.pages) - 1) % len(a.pages))
		case key.Matches(msg, keys.Quit) && !a.typing():
			return a, tea.Quit
		}
		cmd, nav := a.pages[a.activePage].Update(msg)
		return a, tea.Batch(cmd, a.navigate(nav))
	}

	var cmds []tea.Cmd
	for i, p := range a.pages {
		cmd, nav := p.Update(msg)
		cmds = append(cmds, cmd)
		if i == a.activePage {
			cmds = append(cmds, a.navigate(nav))
		}
	}
	return a, tea.Batch(cmds...)
}

func (a *App) typing() bool {
	ip, ok := a.pages[a.activePage].(inputPage)
	return ok && ip.Typing()
}

func (a *App) navigate(nav *PageNav) tea.Cmd {
	if nav == nil {
		return nil
	}
	i, ok := a.index[nav.PageID]
	if !ok {
		return nil
	}
	return a.switchTo(i)
}

func (a *App) switchTo(i int) tea.Cmd {
	if i == a.activePage {
		return nil
	}
	a.activePage = i
	return a.pages[i].Init()
}

func (a *App) View() string {
	if len(a.pages) == 0 {
		return "No active page"
	}
	tabs := make([]string, 0, len(a.pages))
	for i, p := range a.pages {
		if i == a.activePage {
			tabs = append(tabs, activeTab.Render(p.Title()))
		} else {
			tabs = append(tabs, tabStyle.Render(p.Title()))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("FingerVote"), " ", strings.Join(tabs, ""))
	footer := helpStyle.Render(helpLine(keys.NextPage, keys.Quit))

	bodyHeight := max(a.height-2, 0)
	body := a.pages[a.activePage].View(a.width, bodyHeight)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
