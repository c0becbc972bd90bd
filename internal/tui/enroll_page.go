package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/enroll"
	"github.com/tinytelemetry/fingervote/internal/model"
)

type enrollTriggeredMsg struct {
	voterID model.VoterID
	err     error
}

type templatesMsg struct{ err error }

type autofillTickMsg struct{}

type autofillResultMsg struct{ changed bool }

const (
	fieldVoter = iota
	fieldFingerprint
	fieldTemplate
	fieldCount
)

// EnrollPage is the admin registration form: it arms the device for a
// register capture and auto-fills the latest captured fingerprint id.
type EnrollPage struct {
	deps      *Deps
	registrar *enroll.Registrar
	autofill  *enroll.Autofill

	voter       textinput.Model
	fingerprint textinput.Model
	focus       int
	template    int
	busy        bool
	started     bool
	submitted   bool
}

func NewEnrollPage(deps *Deps) *EnrollPage {
	d := deps.withDefaults()
	newInput := func(placeholder string) textinput.Model {
		in := textinput.New()
		in.Placeholder = placeholder
		in.CharLimit = 64
		in.Cursor.SetMode(cursor.CursorStatic)
		return in
	}
	p := &EnrollPage{
		deps:        d,
		registrar:   enroll.NewRegistrar(d.Backend, d.Logger),
		autofill:    enroll.NewAutofill(d.Backend, enroll.WithInterval(d.Scan.PollInterval), enroll.WithLogger(d.Logger)),
		voter:       newInput("voter id"),
		fingerprint: newInput("fingerprint id"),
	}
	p.voter.Focus()
	return p
}

func (p *EnrollPage) ID() string    { return "enroll" }
func (p *EnrollPage) Title() string { return "Register" }

// Init starts template loading and fingerprint polling the first time the
// page is shown.
func (p *EnrollPage) Init() tea.Cmd {
	if p.started {
		return nil
	}
	p.started = true
	return tea.Batch(p.refreshTemplates(), p.pollNow())
}

func (p *EnrollPage) Typing() bool { return p.focus != fieldTemplate }

func (p *EnrollPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKey(msg), nil

	case enrollTriggeredMsg:
		p.busy = false
		form := p.registrar.Form()
		p.deps.record(audit.EnrollEvent(msg.voterID, form.TriggerID, msg.err, p.deps.Now()))
		p.template = min(p.template, len(form.Options)-1)

	case templatesMsg:
		p.template = min(p.template, len(p.registrar.Form().Options)-1)

	case autofillTickMsg:
		if p.autofill.Stopped() {
			return nil, nil
		}
		return p.pollNow(), nil

	case autofillResultMsg:
		if msg.changed {
			p.fingerprint.SetValue(p.autofill.Field())
		}
		if p.autofill.Stopped() {
			return nil, nil
		}
		return p.deps.After(p.autofill.Interval(), func(time.Time) tea.Msg { return autofillTickMsg{} }), nil
	}
	return nil, nil
}

func (p *EnrollPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if msg.String() == "up" || p.focus == fieldTemplate {
			p.setFocus((p.focus + fieldCount - 1) % fieldCount)
			return nil
		}
	case key.Matches(msg, keys.Down):
		if msg.String() == "down" || p.focus == fieldTemplate {
			p.setFocus((p.focus + 1) % fieldCount)
			return nil
		}
	case msg.String() == "left" && p.focus == fieldTemplate:
		p.template = max(p.template-1, 0)
		return nil
	case msg.String() == "right" && p.focus == fieldTemplate:
		p.template = min(p.template+1, len(p.registrar.Form().Options)-1)
		return nil
	case key.Matches(msg, keys.Start):
		if p.focus == fieldVoter {
			return p.trigger()
		}
		p.submit()
		return nil
	}

	var cmd tea.Cmd
	switch p.focus {
	case fieldVoter:
		p.voter, cmd = p.voter.Update(msg)
	case fieldFingerprint:
		before := p.fingerprint.Value()
		p.fingerprint, cmd = p.fingerprint.Update(msg)
		if v := p.fingerprint.Value(); v != before {
			p.autofill.SetField(v)
		}
	}
	return cmd
}

func (p *EnrollPage) setFocus(f int) {
	p.focus = f
	p.voter.Blur()
	p.fingerprint.Blur()
	switch f {
	case fieldVoter:
		p.voter.Focus()
	case fieldFingerprint:
		p.fingerprint.Focus()
	}
}

func (p *EnrollPage) trigger() tea.Cmd {
	if p.busy {
		return nil
	}
	p.busy = true
	d, r := p.deps, p.registrar
	id := model.VoterID(p.voter.Value())
	return func() tea.Msg {
		return enrollTriggeredMsg{voterID: id, err: r.Trigger(d.Ctx, id)}
	}
}

func (p *EnrollPage) refreshTemplates() tea.Cmd {
	d, r := p.deps, p.registrar
	return func() tea.Msg {
		return templatesMsg{err: r.RefreshTemplates(d.Ctx)}
	}
}

func (p *EnrollPage) pollNow() tea.Cmd {
	d, a := p.deps, p.autofill
	return func() tea.Msg {
		return autofillResultMsg{changed: a.Poll(d.Ctx, d.Now())}
	}
}

// submit completes the form and stops fingerprint polling.
func (p *EnrollPage) submit() {
	p.submitted = true
	p.autofill.Stop()
	form := p.registrar.Form()
	tmpl := ""
	if p.template < len(form.Options) {
		tmpl = form.Options[p.template].Value
	}
	p.deps.Logger.Info().
		Str("voter_id", p.voter.Value()).
		Str("fingerprint_id", p.fingerprint.Value()).
		Str("template", tmpl).
		Msg("registration form submitted")
}

func (p *EnrollPage) View(width, height int) string {
	form := p.registrar.Form()

	field := func(i int, label, body string) string {
		mark := "  "
		if p.focus == i {
			mark = cursorMark
		}
		return mark + labelStyle.Render(label) + " " + body
	}

	fp := p.fingerprint.View()
	if p.autofill.Highlighted(p.deps.Now()) {
		fp = hiStyle.Render(p.fingerprint.Value())
	}

	opt := "---------"
	if p.template < len(form.Options) {
		opt = form.Options[p.template].Label
	}
	if !form.RegisterEnabled {
		opt = helpStyle.Render(opt + " (no templates)")
	}

	lines := []string{
		labelStyle.Render("Voter Registration"), "",
		field(fieldVoter, "Voter ID:      ", p.voter.View()),
		field(fieldFingerprint, "Fingerprint ID:", fp),
		field(fieldTemplate, "Template:      ", "◀ "+opt+" ▶"),
		"",
	}
	if form.Message != "" {
		color := ColorGreen
		if form.Failed {
			color = ColorRed
		}
		line := lipgloss.NewStyle().Foreground(color).Render(form.Message)
		if form.TriggerID != "" {
			line += helpStyle.Render(" (Trigger ID: " + form.TriggerID + ")")
		}
		lines = append(lines, line)
	}
	if m := p.autofill.Message(); m != "" {
		lines = append(lines, helpStyle.Render(m))
	}
	if p.submitted {
		lines = append(lines, helpStyle.Render("Form submitted. Fingerprint polling stopped."))
	}
	lines = append(lines, "", helpStyle.Render("enter on Voter ID: trigger scan • enter elsewhere: submit • ↑↓: field • ←→: template"))

	box := boxStyle.Width(min(max(width-4, 30), 80)).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
