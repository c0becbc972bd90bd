package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanpoll"
)

// Journal records flow outcomes.
type Journal interface {
	Record(ev audit.Event) error
}

// Deps are the collaborators shared by the kiosk pages.
type Deps struct {
	Ctx      context.Context
	Backend  model.ScanBackend
	Scan     scanpoll.Config
	Journal  Journal
	Navigate scanpoll.Navigator
	Logger   zerolog.Logger

	// Now and After are replaced in tests.
	Now   func() time.Time
	After func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd
}

func (d *Deps) withDefaults() *Deps {
	out := *d
	if out.Ctx == nil {
		out.Ctx = context.Background()
	}
	if out.Navigate == nil {
		out.Navigate = func(string) {}
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.After == nil {
		out.After = tea.Tick
	}
	return &out
}

func (d *Deps) record(ev audit.Event) {
	if d.Journal == nil {
		return
	}
	if err := d.Journal.Record(ev); err != nil {
		d.Logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("journal record failed")
	}
}

// effectsMsg resumes an effect list after a ClearSession call returned.
type effectsMsg struct {
	owner   string
	seq     uint64
	effects []scanpoll.Effect
}

// navigateMsg fires when a redirect delay has elapsed.
type navigateMsg struct {
	owner string
	seq   uint64
	path  string
}

// chain turns effects into commands. A ClearSession runs first and the
// effects after it are released only once it returns, so the session is
// cleared before the next trigger is sent.
func (d *Deps) chain(owner string, seq uint64, effects []scanpoll.Effect, exec func(scanpoll.Effect) tea.Cmd) tea.Cmd {
	var cmds []tea.Cmd
	for i, eff := range effects {
		switch e := eff.(type) {
		case scanpoll.ClearSession:
			rest := effects[i+1:]
			cmds = append(cmds, func() tea.Msg {
				if err := d.Backend.ClearSession(d.Ctx); err != nil {
					d.Logger.Debug().Err(err).Msg("clear session failed")
				}
				return effectsMsg{owner: owner, seq: seq, effects: rest}
			})
			return tea.Batch(cmds...)
		case scanpoll.Navigate:
			cmds = append(cmds, d.After(e.After, func(time.Time) tea.Msg {
				return navigateMsg{owner: owner, seq: seq, path: e.Path}
			}))
		case scanpoll.StopPolling:
			d.Logger.Debug().Str("trigger_id", e.TriggerID).Msg("polling stopped")
		default:
			cmds = append(cmds, exec(eff))
		}
	}
	return tea.Batch(cmds...)
}
