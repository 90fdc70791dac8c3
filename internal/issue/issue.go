// Package issue holds the anomaly records the monitor derives from the task store and from
// agent reports, together with the rules that decide what counts as an anomaly.
package issue

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nadmax/nexwatch/internal/model"
)

type Kind string

const (
	KindFailedTask    Kind = "FAILED_TASK"
	KindStuckTask     Kind = "STUCK_TASK"
	KindErrorLog      Kind = "ERROR_LOG"
	KindReportFlagged Kind = "REPORT_FLAGGED"
)

const (
	DefaultStuckThreshold = 10 * time.Minute
	DefaultLogWindow      = 5 * time.Minute
	MaxErrorLogs          = 5
	MaxMessageLength      = 200
)

// ErrorKeywords are matched case-insensitively against log messages.
var ErrorKeywords = []string{"error", "failed", "blocked"}

// Issue is one detected anomaly. Only the fields relevant to its Kind are set.
type Issue struct {
	Kind      Kind      `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	TaskName  string    `json:"task_name,omitempty"`
	TaskType  string    `json:"task_type,omitempty"`
	Project   string    `json:"project,omitempty"`
	Status    string    `json:"status,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	Agent     string    `json:"agent,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time,omitzero"`
	Report    string    `json:"report,omitempty"`
}

type Field struct {
	Name  string
	Value string
}

func FailedTask(t model.Task) Issue {
	return Issue{
		Kind:     KindFailedTask,
		TaskID:   t.ID,
		TaskName: t.Name,
		TaskType: t.Type,
		Project:  t.ProjectName,
		Status:   string(t.Status),
	}
}

func StuckTask(t model.Task) Issue {
	return Issue{
		Kind:      KindStuckTask,
		TaskID:    t.ID,
		TaskName:  t.Name,
		TaskType:  t.Type,
		Project:   t.ProjectName,
		UpdatedAt: t.UpdatedAt,
	}
}

func ErrorLog(e model.LogEntry) Issue {
	return Issue{
		Kind:    KindErrorLog,
		Agent:   e.AgentName,
		Message: Truncate(e.Message, MaxMessageLength),
		Time:    e.CreatedAt,
	}
}

func ReportFlagged(agent, tag, path string) Issue {
	return Issue{
		Kind:   KindReportFlagged,
		Agent:  agent,
		Status: tag,
		Report: path,
	}
}

// Fields returns the non-kind fields of the issue in display order.
func (i Issue) Fields() []Field {
	switch i.Kind {
	case KindFailedTask:
		return []Field{
			{"task_id", i.TaskID},
			{"task_name", i.TaskName},
			{"task_type", i.TaskType},
			{"project", i.Project},
			{"status", i.Status},
		}
	case KindStuckTask:
		return []Field{
			{"task_id", i.TaskID},
			{"task_name", i.TaskName},
			{"task_type", i.TaskType},
			{"project", i.Project},
			{"updated_at", formatTime(i.UpdatedAt)},
		}
	case KindErrorLog:
		return []Field{
			{"agent", i.Agent},
			{"message", i.Message},
			{"time", formatTime(i.Time)},
		}
	case KindReportFlagged:
		return []Field{
			{"agent", i.Agent},
			{"status", i.Status},
			{"report", i.Report},
		}
	default:
		return nil
	}
}

// Summary is the short label used on the console board.
func (i Issue) Summary() string {
	switch {
	case i.TaskName != "":
		return i.TaskName
	case i.Message != "":
		return i.Message
	default:
		return i.Agent
	}
}

// Key is a canonical encoding of the issue's value, used for set comparison.
func (i Issue) Key() string {
	var b strings.Builder
	b.WriteString(string(i.Kind))
	for _, f := range i.Fields() {
		b.WriteByte('\x1f')
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}

	return b.String()
}

// SameSet reports whether a and b hold the same issues by value, ignoring order.
func SameSet(a, b []Issue) bool {
	if len(a) != len(b) {
		return false
	}

	ka := keys(a)
	kb := keys(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}

	return true
}

func keys(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Key()
	}
	sort.Strings(out)

	return out
}

// IsStale reports whether updatedAt lies strictly before now-threshold.
func IsStale(updatedAt, now time.Time, threshold time.Duration) bool {
	return updatedAt.Before(now.Add(-threshold))
}

// InWindow reports whether at lies strictly after now-window.
func InWindow(at, now time.Time, window time.Duration) bool {
	return at.After(now.Add(-window))
}

func MatchesErrorKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range ErrorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	return false
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}
