package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/model"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the activity journal, newest last",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := audit.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open activity journal: %w", err)
		}
		defer journal.Close()

		entries, err := readHistory(journal, historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeHistoryJSON(os.Stdout, entries)
		}
		fmt.Fprintln(os.Stdout, renderHistory(entries))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", model.MaxActivityEntries, "show only the most recent entries (0 = all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print one JSON object per line")
}

type historyEntry struct {
	Seq       uint64      `json:"seq"`
	Committed bool        `json:"committed"`
	Event     audit.Event `json:"event"`
}

// readHistory returns the last limit journal entries in append order.
func readHistory(j *audit.Journal, limit int) ([]historyEntry, error) {
	var out []historyEntry
	err := j.Walk(func(seq uint64, ev audit.Event, committed bool) error {
		out = append(out, historyEntry{Seq: seq, Committed: committed, Event: ev})
		if limit > 0 && len(out) > limit {
			out = out[1:]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return out, nil
}

func writeHistoryJSON(w io.Writer, entries []historyEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

var (
	historyHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	historyCell    = lipgloss.NewStyle().Padding(0, 1)
	historySuccess = historyCell.Foreground(lipgloss.Color("46"))
	historyFailed  = historyCell.Foreground(lipgloss.Color("196"))
)

const historyStatusCol = 5

func renderHistory(entries []historyEntry) string {
	if len(entries) == 0 {
		return "No journal entries."
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		seq := fmt.Sprint(e.Seq)
		if !e.Committed {
			seq += "*"
		}
		rows = append(rows, []string{
			seq,
			e.Event.Time.Local().Format("2006-01-02 15:04:05"),
			string(e.Event.Kind),
			e.Event.Voter,
			e.Event.Action,
			e.Event.Status,
			e.Event.Detail,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SEQ", "TIME", "KIND", "VOTER", "ACTION", "STATUS", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return historyHeader
			case col == historyStatusCol && rows[row][col] == model.ActivitySuccess:
				return historySuccess
			case col == historyStatusCol:
				return historyFailed
			}
			return historyCell
		})
	return t.String()
}
