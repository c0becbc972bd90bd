package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanpoll"
)

type triggerMsg struct {
	token uint64
	id    string
	err   error
}

type pollTickMsg struct{ triggerID string }

type scanResultMsg struct {
	triggerID string
	result    model.ScanResult
	err       error
}

// ScanPage runs the trigger-and-poll match flow against the device.
type ScanPage struct {
	deps      *Deps
	machine   *scanpoll.Machine
	spinner   spinner.Model
	seq       uint64
	navigated string
	recorded  uint64
}

func NewScanPage(deps *Deps) *ScanPage {
	d := deps.withDefaults()
	return &ScanPage{
		deps:    d,
		machine: scanpoll.NewMachine(d.Scan),
		spinner: newSpinner(),
	}
}

func (p *ScanPage) ID() string    { return "scan" }
func (p *ScanPage) Title() string { return "Scan" }

func (p *ScanPage) Init() tea.Cmd { return p.spinner.Tick }

// Machine exposes the session state for the status line.
func (p *ScanPage) Machine() *scanpoll.Machine { return p.machine }

func (p *ScanPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = p.handleKey(msg)

	case triggerMsg:
		if msg.err != nil {
			p.deps.Logger.Warn().Err(msg.err).Msg("trigger scan failed")
			cmd = p.run(p.machine.TriggerFailed(msg.token, msg.err, p.deps.Now()))
		} else {
			p.deps.Logger.Info().Str("trigger_id", msg.id).Msg("scan trigger created")
			cmd = p.run(p.machine.TriggerAcked(msg.token, msg.id))
		}

	case pollTickMsg:
		cmd = p.run(p.machine.PollTick(msg.triggerID, p.deps.Now()))

	case scanResultMsg:
		if msg.err != nil {
			p.deps.Logger.Warn().Err(msg.err).Str("trigger_id", msg.triggerID).Msg("scan result request failed")
			cmd = p.run(p.machine.PollFailed(msg.triggerID, msg.err, p.deps.Now()))
		} else {
			if u, ok := msg.result.(model.ResultUnrecognized); ok {
				p.deps.Logger.Warn().Str("status", u.Status).Msg("unrecognized scan status")
			}
			cmd = p.run(p.machine.PollResult(msg.triggerID, msg.result, p.deps.Now()))
		}

	case effectsMsg:
		if msg.owner == p.ID() && msg.seq == p.seq {
			cmd = p.run(msg.effects)
		}

	case navigateMsg:
		if msg.owner == p.ID() && msg.seq == p.seq {
			p.navigated = msg.path
			p.deps.Navigate(msg.path)
			p.machine.Redirected()
		}

	case spinner.TickMsg:
		p.spinner, cmd = p.spinner.Update(msg)
	}
	p.recordOutcome()
	return cmd, nil
}

func (p *ScanPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Start):
		effects, err := p.machine.Start(p.deps.Now())
		if err != nil {
			return nil
		}
		p.seq++
		p.navigated = ""
		return p.run(effects)
	case key.Matches(msg, keys.Cancel):
		// Only a waiting session can be cancelled; a pending redirect stands.
		if !p.machine.Active() {
			return nil
		}
		p.seq++
		return p.run(p.machine.Cancel())
	case key.Matches(msg, keys.Proceed):
		effects, err := p.machine.Proceed()
		if err != nil {
			return nil
		}
		return p.run(effects)
	}
	return nil
}

func (p *ScanPage) run(effects []scanpoll.Effect) tea.Cmd {
	return p.deps.chain(p.ID(), p.seq, effects, p.exec)
}

func (p *ScanPage) exec(eff scanpoll.Effect) tea.Cmd {
	d := p.deps
	switch e := eff.(type) {
	case scanpoll.SendTrigger:
		return func() tea.Msg {
			id, err := d.Backend.TriggerScan(d.Ctx, e.Request)
			return triggerMsg{token: e.Token, id: id, err: err}
		}
	case scanpoll.SchedulePoll:
		return d.After(e.After, func(time.Time) tea.Msg {
			return pollTickMsg{triggerID: e.TriggerID}
		})
	case scanpoll.FetchResult:
		return func() tea.Msg {
			res, err := d.Backend.ScanResult(d.Ctx, e.TriggerID)
			return scanResultMsg{triggerID: e.TriggerID, result: res, err: err}
		}
	}
	return nil
}

// recordOutcome journals each finished session once.
func (p *ScanPage) recordOutcome() {
	s, ok := p.machine.Session()
	if !ok || !s.Status.IsTerminal() || s.ID == p.recorded {
		return
	}
	p.recorded = s.ID
	p.deps.record(audit.ScanEvent(s))
}

func (p *ScanPage) View(width, height int) string {
	v := p.machine.View()

	lines := []string{labelStyle.Render("Fingerprint Scan"), ""}
	status := renderStatus(v)
	if v.Waiting {
		status = p.spinner.View() + " " + status
	}
	if status != "" {
		lines = append(lines, status)
	}
	if s, ok := p.machine.Session(); ok && s.TriggerID != "" {
		lines = append(lines, helpStyle.Render("Trigger: "+s.TriggerID))
	}
	if p.navigated != "" {
		lines = append(lines, "", helpStyle.Render(fmt.Sprintf("Continuing at %s", p.navigated)))
	}

	var actions []key.Binding
	if v.TriggerEnabled {
		actions = append(actions, withHelp(keys.Start, "scan finger"))
	}
	if v.ProceedVisible {
		actions = append(actions, keys.Proceed)
	}
	if v.Waiting {
		actions = append(actions, keys.Cancel)
	}
	lines = append(lines, "", helpStyle.Render(helpLine(actions...)))

	box := boxStyle.Width(min(max(width-4, 30), 72)).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func withHelp(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
