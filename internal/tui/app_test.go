package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type recordingPage struct {
	id     string
	typing bool
	inits  int
	msgs   []tea.Msg
	nav    *PageNav
}

func (p *recordingPage) ID() string    { return p.id }
func (p *recordingPage) Title() string { return strings.ToUpper(p.id) }
func (p *recordingPage) Typing() bool  { return p.typing }

func (p *recordingPage) Init() tea.Cmd {
	p.inits++
	return nil
}

func (p *recordingPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	p.msgs = append(p.msgs, msg)
	nav := p.nav
	p.nav = nil
	return nil, nav
}

func (p *recordingPage) View(int, int) string { return "page " + p.id }

func TestApp_TabCyclesPages(t *testing.T) {
	t.Parallel()
	a, b := &recordingPage{id: "a"}, &recordingPage{id: "b"}
	app := NewApp(a, b)

	app.Update(press("tab"))
	if got := app.Active(); got != "b" {
		t.Fatalf("active = %q, want b", got)
	}
	if b.inits != 1 {
		t.Fatalf("b inits = %d, want 1", b.inits)
	}
	app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := app.Active(); got != "a" {
		t.Fatalf("active = %q, want a", got)
	}
	if len(a.msgs) != 0 || len(b.msgs) != 0 {
		t.Fatal("navigation keys reached pages")
	}
}

func TestApp_KeysGoToActivePageOnly(t *testing.T) {
	t.Parallel()
	a, b := &recordingPage{id: "a"}, &recordingPage{id: "b"}
	app := NewApp(a, b)

	app.Update(press("x"))
	if len(a.msgs) != 1 || len(b.msgs) != 0 {
		t.Fatalf("a=%d b=%d messages", len(a.msgs), len(b.msgs))
	}
}

func TestApp_BackgroundMessagesReachAllPages(t *testing.T) {
	t.Parallel()
	a, b := &recordingPage{id: "a"}, &recordingPage{id: "b"}
	app := NewApp(a, b)

	app.Update(pollTickMsg{triggerID: "T1"})
	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("a=%d b=%d messages", len(a.msgs), len(b.msgs))
	}
}

func TestApp_QuitUnlessTyping(t *testing.T) {
	t.Parallel()
	a := &recordingPage{id: "a"}
	app := NewApp(a)

	_, cmd := app.Update(press("q"))
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not return tea.Quit")
	}

	a.typing = true
	app.Update(press("q"))
	if len(a.msgs) != 1 {
		t.Fatal("q was not delivered to the typing page")
	}
}

func TestApp_PageNavigation(t *testing.T) {
	t.Parallel()
	a, b := &recordingPage{id: "a"}, &recordingPage{id: "b"}
	a.nav = &PageNav{PageID: "b"}
	app := NewApp(a, b)

	app.Update(press("x"))
	if got := app.Active(); got != "b" {
		t.Fatalf("active = %q, want b", got)
	}
	if !strings.Contains(app.View(), "page b") {
		t.Fatal("view does not show the active page")
	}
}
