package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// immediate fires timers at once, advancing the clock by their delay.
// Timers of at least skipFrom are dropped; zero keeps them all.
func (c *testClock) immediate(skipFrom time.Duration) func(time.Duration, func(time.Time) tea.Msg) tea.Cmd {
	return func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
		if skipFrom > 0 && d >= skipFrom {
			return nil
		}
		return func() tea.Msg { return fn(c.advance(d)) }
	}
}

type backend struct {
	mu        sync.Mutex
	calls     []string
	triggerID string
	triggerEr error
	results   []model.ScanResult
	verify    model.VerifyResult
	verified  []string
	latest    string
	templates []model.Template
	requests  []model.TriggerRequest
}

func (b *backend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *backend) ClearSession(context.Context) error {
	b.record("clear")
	return errors.New("ignored")
}

func (b *backend) TriggerScan(_ context.Context, req model.TriggerRequest) (string, error) {
	b.record("trigger")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return b.triggerID, b.triggerEr
}

func (b *backend) ScanResult(_ context.Context, id string) (model.ScanResult, error) {
	b.record("result " + id)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		return model.ResultPending{}, nil
	}
	r := b.results[0]
	if len(b.results) > 1 {
		b.results = b.results[1:]
	}
	return r, nil
}

func (b *backend) VerifyFingerprint(_ context.Context, fp string) (model.VerifyResult, error) {
	b.record("verify")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verified = append(b.verified, fp)
	return b.verify, nil
}

func (b *backend) LatestFingerprint(context.Context) (string, bool, error) {
	b.record("latest")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.latest != "", nil
}

func (b *backend) PendingTemplates(context.Context) ([]model.Template, error) {
	b.record("templates")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.templates, nil
}

type memJournal struct {
	events []audit.Event
}

func (j *memJournal) Record(ev audit.Event) error {
	j.events = append(j.events, ev)
	return nil
}

// pump runs cmd and every command it leads to, feeding messages back into
// the page. Spinner animation is skipped.
func pump(t *testing.T, p Page, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatal("pump did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, _ := p.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send presses s and pumps the result.
func send(t *testing.T, p Page, s string) {
	t.Helper()
	cmd, _ := p.Update(press(s))
	pump(t, p, cmd)
}
