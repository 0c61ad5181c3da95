package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/thruflo/loopsh/internal/actionlog"
	"github.com/thruflo/loopsh/internal/driver"
	"github.com/thruflo/loopsh/internal/recovery"
)

// styles holds the lipgloss styles used for terminal output. They are bound
// to a renderer for the destination writer so colors are dropped when it is
// not a terminal.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorGreen   = lipgloss.Color("#04B575")
	colorYellow  = lipgloss.Color("#FFCC00")
	colorRed     = lipgloss.Color("#FF5F87")
	colorMuted   = lipgloss.Color("#6C6C6C")
)

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		Label:   r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Success: r.NewStyle().Foreground(colorGreen),
		Warning: r.NewStyle().Foreground(colorYellow),
		Error:   r.NewStyle().Foreground(colorRed),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1),
	}
}

// renderRecovery describes a stored checkpoint before the user decides
// what to do with it.
func renderRecovery(w io.Writer, taskID string, info recovery.Info) {
	s := newStyles(w)

	var b strings.Builder
	b.WriteString(s.Title.Render("Interrupted session found: "+taskID) + "\n")
	field := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render(fmt.Sprintf("%-11s", label+":")), value)
	}
	field("Status", info.Summary)
	field("Phase", info.Phase.String())
	field("Iteration", fmt.Sprintf("%d", info.Iteration))
	field("Completed", fmt.Sprintf("%d task(s)", info.CompletedCount))
	if info.LastTask != "" {
		field("Last task", info.LastTask)
	}
	if !info.Timestamp.IsZero() {
		field("Saved", formatTime(info.Timestamp))
	}
	if !info.CanResume {
		b.WriteString(s.Warning.Render("This session cannot be resumed; it will start over."))
	}

	fmt.Fprintln(w, s.Box.Render(strings.TrimRight(b.String(), "\n")))
}

// renderResult prints why the driver stopped.
func renderResult(w io.Writer, taskID string, res driver.Result) {
	s := newStyles(w)

	line := fmt.Sprintf("Stopped: %s after %d iteration(s)", res.Reason, res.Iterations)
	switch {
	case res.Reason == driver.ExitReasonDone:
		fmt.Fprintln(w, s.Success.Render(line))
	case res.Reason.Resumable():
		fmt.Fprintln(w, s.Warning.Render(line))
		fmt.Fprintln(w, s.Muted.Render(fmt.Sprintf("Progress saved. Run `loopsh run %s` to continue.", taskID)))
	default:
		fmt.Fprintln(w, s.Error.Render(line))
	}
	if res.Error != nil {
		fmt.Fprintln(w, s.Error.Render("Error: "+res.Error.Error()))
	}
}

// renderSummary prints the dry-run report.
func renderSummary(w io.Writer, r actionlog.Report) {
	s := newStyles(w)
	fmt.Fprintln(w, s.Box.Render(strings.TrimRight(r.String(), "\n")))
}
