package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/dispatch"
)

// --- STYLES ---
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// renderTable writes rows under headers as a bordered table.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// writeJSONOut writes v as indented JSON.
func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusText colours a run status for terminal output.
func statusText(s dispatch.Status) string {
	switch s {
	case dispatch.StatusCompleted:
		return okStyle.Render(string(s))
	case dispatch.StatusPartial, dispatch.StatusCancelled:
		return warnStyle.Render(string(s))
	default:
		return errStyle.Render(string(s))
	}
}

func onOff(b bool) string {
	if b {
		return okStyle.Render("on")
	}
	return dimStyle.Render("off")
}

// progressPrinter renders dispatch progress on a terminal line. It stands
// in for the WebSocket hub when the console runs inside a CLI command.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
}

func newProgressPrinter(w io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{w: w, quiet: quiet}
}

// Broadcast implements console.WSHub.
func (p *progressPrinter) Broadcast(channel string, payload any) {
	if p.quiet {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev := payload.(type) {
	case console.ProgressEvent:
		label := ev.Label
		if label == "" {
			label = ev.RunID
		}
		fmt.Fprintf(p.w, "\r%s %d/%d frames", dimStyle.Render(label), ev.Current, ev.Total)
	case console.CompletedEvent:
		if channel == console.ChannelDispatchCompleted {
			fmt.Fprintln(p.w)
		}
	}
}

// printOutcome writes the end-of-run summary, with one line per failed entry.
func printOutcome(w io.Writer, o *dispatch.Outcome) {
	fmt.Fprintf(w, "run %s: %s, %d/%d frames sent, %d succeeded, %d failed, %d skipped\n",
		o.RunID, statusText(o.Status), o.FramesSent, o.FramesTotal, o.Succeeded, o.Failed, o.Skipped)
	for _, f := range o.Failures() {
		fmt.Fprintf(w, "  %s %s %s: %s\n", errStyle.Render("x"), f.Destination, f.CommandName, f.Error)
	}
}
