// Package alert turns a set of issues into an alert: a markdown artifact written to the
// reports directory plus best-effort fan-out to any configured notifiers.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/nexwatch/internal/issue"
)

type Source string

const (
	SourceDatabase Source = "database"
	SourceReports  Source = "reports"
)

const timestampLayout = "20060102_150405"

type Alert struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Source    Source        `json:"source"`
	Issues    []issue.Issue `json:"issues"`
}

func New(source Source, issues []issue.Issue, now time.Time) *Alert {
	copied := make([]issue.Issue, len(issues))
	copy(copied, issues)

	return &Alert{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Source:    source,
		Issues:    copied,
	}
}

// Summary is a one-line description used for notification subjects.
func (a *Alert) Summary() string {
	counts := make(map[issue.Kind]int)
	var order []issue.Kind
	for _, is := range a.Issues {
		if counts[is.Kind] == 0 {
			order = append(order, is.Kind)
		}
		counts[is.Kind]++
	}

	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}

	return fmt.Sprintf("[nexwatch] %d issue(s) from %s: %s", len(a.Issues), a.Source, strings.Join(parts, ", "))
}

// Render produces the markdown document for the alert.
func Render(a *Alert, guidanceDir string) string {
	var b strings.Builder

	b.WriteString("# ALERT - Agent Issues Detected\n")
	fmt.Fprintf(&b, "**Timestamp:** %s\n", a.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Alert ID:** %s\n", a.ID)
	fmt.Fprintf(&b, "**Source:** %s\n", a.Source)
	b.WriteString("**Status:** NEEDS ATTENTION\n\n")
	b.WriteString("## Issues Found\n\n")

	for _, is := range a.Issues {
		fmt.Fprintf(&b, "### %s\n", is.Kind)
		for _, f := range is.Fields() {
			fmt.Fprintf(&b, "- **%s:** %s\n", f.Name, f.Value)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Action Required\n\n")
	b.WriteString("Operator intervention needed. Options:\n")
	b.WriteString("1. Check the task details in the database\n")
	fmt.Fprintf(&b, "2. Provide guidance in the %s/ folder\n", strings.TrimRight(guidanceDir, "/"))
	b.WriteString("3. Manually fix and retry the task\n")

	return b.String()
}

// Filename is the artifact name for an alert created at t.
func Filename(t time.Time) string {
	return "ALERT_" + t.Format(timestampLayout) + ".md"
}
