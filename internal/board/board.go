// Package board renders what the monitors print to the console.
package board

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/nadmax/nexwatch/internal/issue"
	"github.com/nadmax/nexwatch/internal/report"
	"github.com/nadmax/nexwatch/internal/scanner"
	"golang.org/x/term"
)

const (
	ruleWidth     = 70
	barWidth      = 20
	issueWidth    = 50
	clearSequence = "\033[2J\033[H"
)

type styles struct {
	title   lipgloss.Style
	warning lipgloss.Style
	ok      lipgloss.Style
	dim     lipgloss.Style
	alert   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("42")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
		alert:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

type Board struct {
	out    io.Writer
	clear  bool
	styles styles
}

// New returns a board writing to out. The screen is only cleared between refreshes when
// clearScreen is set and out is a terminal.
func New(out io.Writer, clearScreen bool) *Board {
	if out == nil {
		out = os.Stdout
	}

	return &Board{
		out:    out,
		clear:  clearScreen && IsTerminal(out),
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// View is everything the status board shows for one cycle.
type View struct {
	Status    *scanner.Status
	Issues    []issue.Issue
	CheckedAt time.Time
	Next      time.Duration
	AlertPath string
	Err       error
}

func (b *Board) Show(v View) {
	if b.clear {
		fmt.Fprint(b.out, clearSequence)
	}
	fmt.Fprint(b.out, b.Render(v))
}

func (b *Board) Render(v View) string {
	var sb strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	sb.WriteString(rule + "\n")
	sb.WriteString(b.styles.title.Render("       DATABASE WATCHDOG") + "\n")
	sb.WriteString("       Press Ctrl+C to stop\n")
	sb.WriteString(rule + "\n\n")

	if v.Err != nil {
		sb.WriteString(b.styles.alert.Render(fmt.Sprintf("[ERROR] %v", v.Err)) + "\n\n")
	}

	if v.Status != nil {
		b.renderStatus(&sb, v.Status)
	}

	if len(v.Issues) > 0 {
		bang := strings.Repeat("!", ruleWidth)
		sb.WriteString(b.styles.warning.Render(bang) + "\n")
		sb.WriteString(b.styles.warning.Render("  ISSUES DETECTED - INTERVENTION NEEDED") + "\n")
		sb.WriteString(b.styles.warning.Render(bang) + "\n")
		for _, is := range v.Issues {
			fmt.Fprintf(&sb, "  [%s] %s\n", is.Kind, issue.Truncate(is.Summary(), issueWidth))
		}
		sb.WriteString("\n")
	} else if v.Err == nil {
		sb.WriteString(b.styles.ok.Render("[OK] No issues detected") + "\n")
	}

	sb.WriteString("\n")
	sb.WriteString(b.styles.dim.Render(fmt.Sprintf("Last check: %s | Next in %s",
		v.CheckedAt.Format("15:04:05"), formatInterval(v.Next))) + "\n")

	if v.AlertPath != "" {
		sb.WriteString("\n" + b.styles.alert.Render("[ALERT] Written to: "+v.AlertPath) + "\n")
	}

	return sb.String()
}

func (b *Board) renderStatus(sb *strings.Builder, st *scanner.Status) {
	if st.Project != nil {
		fmt.Fprintf(sb, "Project: %s\n", st.Project.Name)
		fmt.Fprintf(sb, "Status:  %s\n\n", st.Project.Status)
	}

	if counts := st.SortedCounts(); len(counts) > 0 {
		total := st.TotalTasks()
		sb.WriteString("Tasks:\n")
		for _, c := range counts {
			fmt.Fprintf(sb, "  %-15s [%s] %d\n", c.Status, Bar(c.Count, total, barWidth), c.Count)
		}
		sb.WriteString("\n")
	}

	if len(st.Agents) > 0 {
		sb.WriteString("Agents:\n")
		for _, a := range st.Agents {
			fmt.Fprintf(sb, "  %-25s %-10s %s\n", a.AgentName, a.Status, a.Liveness)
		}
		sb.WriteString("\n")
	}
}

// Bar draws count out of total as a fixed-width bar of '#' and '.'.
func Bar(count, total, width int) string {
	filled := 0
	if total > 0 {
		filled = count * width / total
	}
	filled = max(0, min(filled, width))

	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}

func formatInterval(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}

// Banner prints the report watcher's startup header.
func (b *Board) Banner(reportsDir, guidanceDir, statusFile string) {
	rule := strings.Repeat("=", ruleWidth)

	fmt.Fprintln(b.out, rule)
	fmt.Fprintln(b.out, b.styles.title.Render("       REPORT WATCHDOG"))
	fmt.Fprintln(b.out, "       Agent report monitor")
	fmt.Fprintln(b.out, rule)
	fmt.Fprintf(b.out, " Reports:   %s\n", reportsDir)
	fmt.Fprintf(b.out, " Guidance:  %s\n", guidanceDir)
	fmt.Fprintf(b.out, " Status:    %s\n", statusFile)
	fmt.Fprintln(b.out, rule)
}

// Agents prints the persisted snapshot, flagging agents that need attention.
func (b *Board) Agents(snap report.Snapshot) {
	if len(snap) == 0 {
		return
	}

	rule := strings.Repeat("-", 50)
	fmt.Fprintln(b.out, rule)
	fmt.Fprintln(b.out, " CURRENT AGENT STATUS")
	fmt.Fprintln(b.out, rule)
	for _, agent := range snap.Agents() {
		entry := snap[agent]
		line := fmt.Sprintf(" %s: %s", agent, entry.Status)
		if entry.NeedsAttention {
			line += " " + b.styles.warning.Render("[!] NEEDS ATTENTION")
		}
		fmt.Fprintln(b.out, line)
	}
	fmt.Fprintln(b.out, rule)
}
