package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/fingervote/internal/demo"
	"github.com/tinytelemetry/fingervote/internal/model"
)

const toastTTL = 3 * time.Second

type demoScanTickMsg struct{}

type demoRetryMsg struct{ gen uint64 }

type sessionTickMsg struct{ gen uint64 }

type candidatesMsg struct {
	candidates []model.Candidate
	err        error
}

type adminDataMsg struct {
	stats    model.AdminStats
	tally    []model.VoteCount
	activity []model.ActivityEntry
	err      error
}

type shownToast struct {
	demo.Toast
	until time.Time
}

// DemoPage is the self-contained election kiosk: welcome, simulated
// scanner, ballot, thank-you and admin screens over the local store.
type DemoPage struct {
	deps  *Deps
	kiosk *demo.Kiosk

	candidates []model.Candidate
	cursor     int
	gen        uint64
	toasts     []shownToast
	admin      adminDataMsg
	loadErr    error
	started    bool
}

func NewDemoPage(deps *Deps, kiosk *demo.Kiosk) *DemoPage {
	return &DemoPage{deps: deps.withDefaults(), kiosk: kiosk}
}

func (p *DemoPage) ID() string    { return "demo" }
func (p *DemoPage) Title() string { return "Election" }

func (p *DemoPage) Init() tea.Cmd {
	if p.started {
		return nil
	}
	p.started = true
	k := p.kiosk
	return func() tea.Msg {
		c, err := k.Candidates()
		return candidatesMsg{candidates: c, err: err}
	}
}

func (p *DemoPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = p.handleKey(msg)

	case candidatesMsg:
		p.candidates, p.loadErr = msg.candidates, msg.err

	case adminDataMsg:
		p.admin = msg

	case demoScanTickMsg:
		cmd = p.scanTick()

	case demoRetryMsg:
		if msg.gen == p.gen && p.kiosk.Page() == demo.PageScanner {
			p.kiosk.ShowWelcome()
		}

	case sessionTickMsg:
		if msg.gen != p.gen {
			return nil, nil
		}
		if !p.kiosk.Tick() && p.kiosk.Page() == demo.PageDashboard {
			cmd = p.sessionTick()
		}
	}
	p.collectToasts()
	return cmd, nil
}

func (p *DemoPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, keys.Language) {
		p.kiosk.ToggleLanguage()
		return nil
	}

	switch p.kiosk.Page() {
	case demo.PageWelcome:
		switch {
		case key.Matches(msg, keys.Start):
			if err := p.kiosk.StartScan(); err != nil {
				return nil
			}
			p.gen++
			return p.deps.After(p.kiosk.Config().ScanTick, func(time.Time) tea.Msg { return demoScanTickMsg{} })
		case key.Matches(msg, keys.Admin):
			p.kiosk.ShowAdmin()
			return p.loadAdmin()
		}

	case demo.PageDashboard:
		if _, open := p.kiosk.Selected(); open {
			switch {
			case key.Matches(msg, keys.Confirm):
				if _, err := p.kiosk.ConfirmVote(); err != nil {
					p.deps.Logger.Warn().Err(err).Msg("vote not cast")
				}
			case key.Matches(msg, keys.Cancel), msg.String() == "n":
				p.kiosk.CancelVote()
			}
			return nil
		}
		switch {
		case key.Matches(msg, keys.Up):
			p.cursor = max(p.cursor-1, 0)
		case key.Matches(msg, keys.Down):
			p.cursor = min(p.cursor+1, max(len(p.candidates)-1, 0))
		case key.Matches(msg, keys.Vote):
			if p.cursor < len(p.candidates) {
				if err := p.kiosk.SelectCandidate(p.candidates[p.cursor].ID); err != nil {
					p.deps.Logger.Debug().Err(err).Msg("candidate not selectable")
				}
			}
		case key.Matches(msg, keys.Logout):
			p.gen++
			p.kiosk.Logout()
		}

	case demo.PageThankYou:
		if key.Matches(msg, keys.Start) || key.Matches(msg, keys.Logout) {
			p.gen++
			p.kiosk.Logout()
		}

	case demo.PageAdmin:
		switch {
		case key.Matches(msg, keys.Refresh):
			p.kiosk.Refresh()
			return p.loadAdmin()
		case key.Matches(msg, keys.Report):
			k := p.kiosk
			return func() tea.Msg {
				if _, _, err := k.GenerateReport(); err != nil {
					return adminDataMsg{err: err}
				}
				return nil
			}
		case key.Matches(msg, keys.Cancel):
			p.kiosk.ShowWelcome()
		}
	}
	return nil
}

func (p *DemoPage) scanTick() tea.Cmd {
	out, err := p.kiosk.ScanTick()
	if err != nil {
		p.deps.Logger.Error().Err(err).Msg("demo scan failed")
		p.kiosk.ShowWelcome()
		return nil
	}
	if !out.Done {
		if scanning, _ := p.kiosk.Scanning(); !scanning {
			return nil
		}
		return p.deps.After(p.kiosk.Config().ScanTick, func(time.Time) tea.Msg { return demoScanTickMsg{} })
	}
	if !out.Success {
		gen := p.gen
		return p.deps.After(out.RetryAfter, func(time.Time) tea.Msg { return demoRetryMsg{gen: gen} })
	}
	p.gen++
	p.cursor = 0
	return p.sessionTick()
}

func (p *DemoPage) sessionTick() tea.Cmd {
	gen := p.gen
	return p.deps.After(time.Second, func(time.Time) tea.Msg { return sessionTickMsg{gen: gen} })
}

func (p *DemoPage) loadAdmin() tea.Cmd {
	k := p.kiosk
	return func() tea.Msg {
		var out adminDataMsg
		if out.stats, out.err = k.Stats(); out.err != nil {
			return out
		}
		if out.tally, out.err = k.Tally(); out.err != nil {
			return out
		}
		out.activity, out.err = k.Activity()
		return out
	}
}

func (p *DemoPage) collectToasts() {
	now := p.deps.Now()
	kept := p.toasts[:0]
	for _, t := range p.toasts {
		if now.Before(t.until) {
			kept = append(kept, t)
		}
	}
	p.toasts = kept
	for _, t := range p.kiosk.Toasts() {
		p.toasts = append(p.toasts, shownToast{Toast: t, until: now.Add(toastTTL)})
	}
}

func (p *DemoPage) View(width, height int) string {
	var body string
	switch p.kiosk.Page() {
	case demo.PageWelcome:
		body = p.viewWelcome()
	case demo.PageScanner:
		body = p.viewScanner()
	case demo.PageDashboard:
		body = p.viewDashboard()
	case demo.PageThankYou:
		body = p.viewThankYou()
	case demo.PageAdmin:
		body = p.viewAdmin(width)
	}

	var toasts []string
	for _, t := range p.toasts {
		toasts = append(toasts, lipgloss.NewStyle().Foreground(toastColor(t.Kind)).Bold(true).Render("● "+t.Message))
	}
	if p.loadErr != nil {
		toasts = append(toasts, lipgloss.NewStyle().Foreground(ColorRed).Render(p.loadErr.Error()))
	}

	box := boxStyle.Width(min(max(width-4, 40), 100)).Render(body)
	content := lipgloss.JoinVertical(lipgloss.Center, box, strings.Join(toasts, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (p *DemoPage) viewWelcome() string {
	k := p.kiosk
	return lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(k.T("title")),
		helpStyle.Render(k.T("subtitle")),
		"",
		labelStyle.Render("🖐  "+k.T("start_voting")),
		"",
		helpStyle.Render(helpLine(withHelp(keys.Start, k.T("start_voting")), withHelp(keys.Admin, k.T("admin")), withHelp(keys.Language, otherLanguage(k)))),
	)
}

// otherLanguage names the language the toggle switches to.
func otherLanguage(k *demo.Kiosk) string {
	return demo.T(k.Lang().Toggle(), "language")
}

func (p *DemoPage) viewScanner() string {
	k := p.kiosk
	_, progress := k.Scanning()
	return lipgloss.JoinVertical(lipgloss.Center,
		labelStyle.Render(k.T("scan_prompt")),
		"",
		renderProgress(progress, 40),
		helpStyle.Render(fmt.Sprintf("%s %d%%", k.T("scanning"), progress)),
	)
}

func (p *DemoPage) viewDashboard() string {
	k := p.kiosk
	voter, _ := k.Voter()

	header := fmt.Sprintf("%s, %s", k.T("welcome"), voter.Name)
	timer := fmt.Sprintf("%s %s", k.T("session"), k.TimerText())
	lines := []string{
		labelStyle.Render(header) + "   " + lipgloss.NewStyle().Foreground(ColorYellow).Render(timer),
		"",
	}
	if voter.HasVoted {
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorYellow).Bold(true).Render(k.T("already_voted_alert")), "")
	}

	lines = append(lines, labelStyle.Render(k.T("candidates")))
	for i, c := range p.candidates {
		mark := "  "
		if i == p.cursor {
			mark = cursorMark
		}
		action := "[" + k.T("vote") + "]"
		if voter.HasVoted {
			action = helpStyle.Render("[" + k.T("already_voted") + "]")
		}
		lines = append(lines, fmt.Sprintf("%s%s %s  %s  %s", mark, c.Photo, labelStyle.Render(c.Name), helpStyle.Render(c.Party), action))
	}

	if p.cursor < len(p.candidates) {
		c := p.candidates[p.cursor]
		lines = append(lines, "", labelStyle.Render(k.T("manifesto")), c.Manifesto, "", labelStyle.Render(k.T("achievements")))
		for _, a := range c.Achievements {
			lines = append(lines, "  • "+a)
		}
	}

	if sel, open := k.Selected(); open {
		confirm := lipgloss.JoinVertical(lipgloss.Left,
			labelStyle.Render(k.T("confirm_title")),
			fmt.Sprintf("%s %s (%s)", sel.Photo, sel.Name, sel.Party),
			helpStyle.Render(helpLine(withHelp(keys.Confirm, k.T("confirm")), withHelp(keys.Cancel, k.T("cancel")))),
		)
		lines = append(lines, "", boxStyle.BorderForeground(ColorYellow).Render(confirm))
	}

	lines = append(lines, "", helpStyle.Render(helpLine(keys.Up, keys.Down, withHelp(keys.Vote, k.T("vote")), withHelp(keys.Logout, k.T("logout")))))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (p *DemoPage) viewThankYou() string {
	k := p.kiosk
	r, _ := k.Receipt()
	return lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Foreground(ColorGreen).Bold(true).Render("✓ "+k.T("thank_you")),
		"",
		fmt.Sprintf("%s: %s", k.T("position"), r.Position),
		fmt.Sprintf("%s: %s", k.T("candidate"), r.Candidate.Name),
		fmt.Sprintf("%s: %s", k.T("time"), r.Time.Format("15:04:05")),
		"",
		helpStyle.Render(helpLine(withHelp(keys.Start, k.T("new_vote")))),
	)
}
