package alert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nadmax/nexwatch/internal/fsutil"
)

// ErrWrite marks a failure to persist an alert artifact.
var ErrWrite = errors.New("alert write failed")

const maxNameAttempts = 100

type Writer struct {
	dir         string
	guidanceDir string
}

func NewWriter(dir, guidanceDir string) *Writer {
	return &Writer{dir: dir, guidanceDir: guidanceDir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Write stores the rendered alert as ALERT_<timestamp>.md, creating the directory if needed.
// A second alert in the same second gets a numeric suffix.
func (w *Writer) Write(a *Alert) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	path, err := w.nextPath(a)
	if err != nil {
		return "", err
	}

	if err := fsutil.AtomicWriteFile(path, []byte(Render(a, w.guidanceDir)), 0644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return path, nil
}

func (w *Writer) nextPath(a *Alert) (string, error) {
	base := strings.TrimSuffix(Filename(a.CreatedAt), ".md")

	for i := 1; i <= maxNameAttempts; i++ {
		name := base + ".md"
		if i > 1 {
			name = fmt.Sprintf("%s_%d.md", base, i)
		}

		path := filepath.Join(w.dir, name)
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrWrite, err)
		}
	}

	return "", fmt.Errorf("%w: no free name for %s", ErrWrite, base)
}
