package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/fingervote/internal/model"
)

const adminActivityRows = 10

var candidateColors = []lipgloss.Color{"39", "208", "201", "46", "226"}

func (p *DemoPage) viewAdmin(width int) string {
	k := p.kiosk
	d := p.admin
	if d.err != nil {
		return lipgloss.NewStyle().Foreground(ColorRed).Render(d.err.Error())
	}

	stat := func(label string, value string) string {
		return boxStyle.Padding(0, 2).Render(lipgloss.JoinVertical(lipgloss.Center, labelStyle.Render(value), helpStyle.Render(label)))
	}
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		stat(k.T("total_voters"), fmt.Sprint(d.stats.TotalVoters)),
		stat(k.T("total_votes"), fmt.Sprint(d.stats.TotalVotes)),
		stat(k.T("turnout"), fmt.Sprintf("%d%%", d.stats.TurnoutPercentage)),
	)

	chartWidth := min(max(width-30, 24), 60)
	lines := []string{
		titleStyle.Render(k.T("admin")),
		"",
		stats,
		"",
		labelStyle.Render(k.T("results")),
		renderTally(d.tally, chartWidth, 8),
		"",
		labelStyle.Render(k.T("activity")),
		renderActivity(k.T, d.activity, adminActivityRows),
		"",
		helpStyle.Render(helpLine(withHelp(keys.Refresh, k.T("refresh")), withHelp(keys.Report, k.T("generate_reports")), withHelp(keys.Cancel, k.T("back")))),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderTally draws one bar per candidate with a legend on the right.
func renderTally(tally []model.VoteCount, chartWidth, chartHeight int) string {
	if len(tally) == 0 {
		return helpStyle.Render("No data available")
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(2),
		barchart.WithBarWidth(max(chartWidth/len(tally)-2, 1)),
		barchart.WithNoAxis(),
	)

	var legend []string
	for i, t := range tally {
		color := candidateColors[i%len(candidateColors)]
		style := lipgloss.NewStyle().Foreground(color).Background(color)
		bc.Push(barchart.BarData{
			Values: []barchart.BarValue{{Name: t.Name, Value: float64(t.Count), Style: style}},
		})
		legend = append(legend, lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%-16s %4d", truncate(t.Name, 16), t.Count)))
	}
	bc.Draw()

	chartLines := strings.Split(bc.View(), "\n")
	for len(legend) < len(chartLines) {
		legend = append(legend, "")
	}
	out := make([]string, 0, len(chartLines))
	for i, line := range chartLines {
		out = append(out, line+"  "+legend[i])
	}
	return strings.Join(out, "\n")
}

func renderActivity(t func(string) string, rows []model.ActivityEntry, limit int) string {
	if len(rows) == 0 {
		return helpStyle.Render("No activity")
	}
	header := helpStyle.Render(fmt.Sprintf("%-8s %-16s %-12s %s", t("time"), t("voter"), t("action"), t("status")))
	lines := []string{header}
	for i, r := range rows {
		if i >= limit {
			break
		}
		color := ColorGreen
		if r.Status != model.ActivitySuccess {
			color = ColorRed
		}
		status := lipgloss.NewStyle().Foreground(color).Render(r.Status)
		lines = append(lines, fmt.Sprintf("%-8s %-16s %-12s %s", r.Time.Format("15:04"), truncate(r.Voter, 16), truncate(r.Action, 12), status))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
