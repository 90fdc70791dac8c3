// Package report classifies agent-written report files, keeps the per-agent status snapshot
// current and raises attention notices for reports that need an operator.
package report

import (
	"errors"
	"path/filepath"
	"strings"
)

const (
	Extension   = ".md"
	AlertPrefix = "ALERT_"
)

type Tag string

const (
	TagError    Tag = "ERROR"
	TagBlocked  Tag = "BLOCKED"
	TagQuestion Tag = "QUESTION"
	TagComplete Tag = "COMPLETE"
	TagProgress Tag = "PROGRESS"
)

// ErrMalformedFilename is reported when a name has too few segments to carry both an agent
// and a tag. Parsing still succeeds with agent == tag == stem.
var ErrMalformedFilename = errors.New("report filename has fewer than two segments")

// NeedsAttention reports whether the tag asks for operator input.
func (t Tag) NeedsAttention() bool {
	switch t {
	case TagError, TagBlocked, TagQuestion:
		return true
	default:
		return false
	}
}

// Report is what the filename of an agent report encodes:
// <agent>_<freeform>_<TAG>.md
type Report struct {
	Path     string
	Filename string
	Agent    string
	Tag      Tag
}

// IsReportFile reports whether name is an agent report the watcher should process.
func IsReportFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, Extension) &&
		len(base) > len(Extension) &&
		!strings.HasPrefix(base, AlertPrefix) &&
		!strings.HasPrefix(base, ".")
}

// ParseFilename extracts the agent and tag from a report path. The error is
// ErrMalformedFilename for single-segment names, in which case the returned Report is
// still usable.
func ParseFilename(path string) (Report, error) {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, Extension)
	parts := strings.Split(stem, "_")

	r := Report{
		Path:     path,
		Filename: name,
		Agent:    parts[0],
		Tag:      Tag(parts[len(parts)-1]),
	}

	if len(parts) < 2 {
		r.Agent = stem
		r.Tag = Tag(stem)
		return r, ErrMalformedFilename
	}

	return r, nil
}
