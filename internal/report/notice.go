package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const ExcerptLength = 800

const rule = "======================================================================"

// Excerpt returns the first ExcerptLength characters of content and how many were cut.
func Excerpt(content string) (string, int) {
	total := utf8.RuneCountInString(content)
	if total <= ExcerptLength {
		return content, 0
	}

	return string([]rune(content)[:ExcerptLength]), total - ExcerptLength
}

// GuidanceFilename is where an operator should put the response for agent.
func GuidanceFilename(guidanceDir, agent string, now time.Time) string {
	return filepath.Join(guidanceDir, fmt.Sprintf("%s_guidance_%s.md", agent, now.Format("20060102_150405")))
}

// AttentionNotice renders the operator prompt for an attention-needing report.
func AttentionNotice(r Report, content, guidanceDir string, now time.Time) string {
	excerpt, remaining := Excerpt(content)
	dash := strings.Repeat("-", len(rule))

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, " ATTENTION REQUIRED: %s - %s\n", strings.ToUpper(r.Agent), r.Tag)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "\n Report: %s\n", r.Path)
	fmt.Fprintf(&b, " Guidance folder: %s\n", guidanceDir)
	b.WriteString("\n" + dash + "\n")
	b.WriteString(" REPORT CONTENT:\n")
	b.WriteString(dash + "\n")
	b.WriteString(excerpt + "\n")
	if remaining > 0 {
		fmt.Fprintf(&b, "\n... [%d more characters]\n", remaining)
	}
	b.WriteString(dash + "\n")
	b.WriteString("\n ACTION REQUIRED:\n")
	b.WriteString(" 1. Review the error/question above\n")
	fmt.Fprintf(&b, " 2. Create guidance file: %s\n", GuidanceFilename(guidanceDir, r.Agent, now))
	b.WriteString(" 3. Agent will pick up guidance on next run\n")
	b.WriteString(rule + "\n")

	return b.String()
}

// InfoNotice is the single line printed for reports that need no attention.
func InfoNotice(r Report, now time.Time) string {
	clock := now.Format("15:04:05")

	switch r.Tag {
	case TagComplete:
		return fmt.Sprintf("[%s] %s completed task", clock, r.Agent)
	case TagProgress:
		return fmt.Sprintf("[%s] %s progress update", clock, r.Agent)
	default:
		return fmt.Sprintf("[%s] %s reported %s", clock, r.Agent, r.Tag)
	}
}
