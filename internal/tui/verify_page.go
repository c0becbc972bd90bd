package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanpoll"
)

type verifyMsg struct {
	seq           uint64
	token         uint64
	fingerprintID string
	result        model.VerifyResult
	err           error
}

type simTickMsg struct{ seq uint64 }

// VerifyPage posts a fingerprint id for verification. In simulated mode
// the id comes from the simulated scanner instead of the input.
type VerifyPage struct {
	deps      *Deps
	simulated bool
	input     textinput.Model
	verifier  *scanpoll.Verifier
	sim       *scanpoll.Simulation
	spinner   spinner.Model
	seq       uint64
	navigated string
}

func NewVerifyPage(deps *Deps, simulated bool) *VerifyPage {
	d := deps.withDefaults()
	in := textinput.New()
	in.Placeholder = "fingerprint id"
	in.CharLimit = 64
	in.Cursor.SetMode(cursor.CursorStatic)
	if !simulated {
		in.Focus()
	}
	return &VerifyPage{
		deps:      d,
		simulated: simulated,
		input:     in,
		verifier:  scanpoll.NewVerifier(d.Scan),
		sim:       scanpoll.NewSimulation(d.Scan),
		spinner:   newSpinner(),
	}
}

func (p *VerifyPage) ID() string { return "verify" }

func (p *VerifyPage) Title() string {
	if p.simulated {
		return "Verify (simulated)"
	}
	return "Verify"
}

func (p *VerifyPage) Init() tea.Cmd { return p.spinner.Tick }

// Typing reports whether key presses belong to the fingerprint input.
func (p *VerifyPage) Typing() bool { return !p.simulated && p.input.Focused() }

func (p *VerifyPage) view() scanpoll.View {
	if p.simulated {
		return p.sim.View()
	}
	return p.verifier.View()
}

func (p *VerifyPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = p.handleKey(msg)

	case verifyMsg:
		if msg.seq != p.seq {
			return nil, nil
		}
		if msg.err != nil {
			p.deps.Logger.Warn().Err(msg.err).Msg("fingerprint verification failed")
		}
		p.deps.record(audit.VerifyEvent(msg.fingerprintID, msg.result, msg.err, p.deps.Now()))
		if p.simulated {
			cmd = p.run(p.sim.Apply(msg.token, msg.result, msg.err))
		} else {
			cmd = p.run(p.verifier.Apply(msg.token, msg.result, msg.err))
		}

	case simTickMsg:
		if msg.seq == p.seq {
			cmd = p.run(p.sim.Tick())
		}

	case navigateMsg:
		if msg.owner == p.ID() && msg.seq == p.seq {
			p.navigated = msg.path
			p.deps.Navigate(msg.path)
			p.sim.Redirected()
			p.verifier.Redirected()
		}

	case spinner.TickMsg:
		p.spinner, cmd = p.spinner.Update(msg)
	}
	return cmd, nil
}

func (p *VerifyPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Start):
		var (
			effects []scanpoll.Effect
			err     error
		)
		if p.simulated {
			effects, err = p.sim.Start()
		} else {
			effects, err = p.verifier.Begin(p.input.Value())
		}
		if err != nil {
			return nil
		}
		p.seq++
		p.navigated = ""
		return p.run(effects)

	case key.Matches(msg, keys.Cancel):
		p.seq++
		p.sim.Cancel()
		p.verifier.Cancel()
		return nil
	}

	if p.Typing() {
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return cmd
	}
	return nil
}

func (p *VerifyPage) run(effects []scanpoll.Effect) tea.Cmd {
	return p.deps.chain(p.ID(), p.seq, effects, p.exec)
}

func (p *VerifyPage) exec(eff scanpoll.Effect) tea.Cmd {
	d := p.deps
	seq := p.seq
	switch e := eff.(type) {
	case scanpoll.VerifyRequest:
		return func() tea.Msg {
			res, err := d.Backend.VerifyFingerprint(d.Ctx, e.FingerprintID)
			return verifyMsg{seq: seq, token: e.Token, fingerprintID: e.FingerprintID, result: res, err: err}
		}
	case scanpoll.SimulatedTick:
		return d.After(e.After, func(time.Time) tea.Msg { return simTickMsg{seq: seq} })
	}
	return nil
}

func (p *VerifyPage) View(width, height int) string {
	v := p.view()

	lines := []string{labelStyle.Render("Fingerprint Verification"), ""}
	if p.simulated {
		lines = append(lines, renderProgress(v.Progress, 40))
	} else {
		lines = append(lines, "Fingerprint ID: "+p.input.View())
	}
	status := renderStatus(v)
	if v.Waiting {
		status = p.spinner.View() + " " + status
	}
	if status != "" {
		lines = append(lines, "", status)
	}
	if p.navigated != "" {
		lines = append(lines, "", helpStyle.Render(fmt.Sprintf("Continuing at %s", p.navigated)))
	}
	desc := "verify"
	if p.simulated {
		desc = "start scanning"
	}
	lines = append(lines, "", helpStyle.Render(helpLine(withHelp(keys.Start, desc), keys.Cancel)))

	box := boxStyle.Width(min(max(width-4, 30), 72)).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
