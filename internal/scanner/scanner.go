// Package scanner classifies the pipeline database into issues and builds the point-in-time
// status shown on the console board.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nadmax/nexwatch/internal/issue"
	"github.com/nadmax/nexwatch/internal/repository"
)

// ErrSourceUnavailable wraps every repository failure. A scan that returns it produced no
// usable issue set.
var ErrSourceUnavailable = errors.New("data source unavailable")

type Config struct {
	StuckThreshold time.Duration
	LogWindow      time.Duration
	MaxErrorLogs   int
	ProjectName    string
}

func DefaultConfig() Config {
	return Config{
		StuckThreshold: issue.DefaultStuckThreshold,
		LogWindow:      issue.DefaultLogWindow,
		MaxErrorLogs:   issue.MaxErrorLogs,
	}
}

type Scanner struct {
	repo repository.TaskRepository
	cfg  Config
}

func NewScanner(repo repository.TaskRepository, cfg Config) *Scanner {
	def := DefaultConfig()
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = def.StuckThreshold
	}
	if cfg.LogWindow <= 0 {
		cfg.LogWindow = def.LogWindow
	}
	if cfg.MaxErrorLogs <= 0 {
		cfg.MaxErrorLogs = def.MaxErrorLogs
	}

	return &Scanner{repo: repo, cfg: cfg}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, op, err)
}

// Scan evaluates the failed, stuck and error-log rules against now and returns their
// issues in that order.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]issue.Issue, error) {
	issues := []issue.Issue{}

	failed, err := s.repo.FailedTasks(ctx)
	if err != nil {
		return nil, unavailable("failed tasks", err)
	}
	for _, t := range failed {
		if !t.Status.IsFailure() {
			continue
		}
		issues = append(issues, issue.FailedTask(t))
	}

	stale, err := s.repo.StaleTasks(ctx, now.Add(-s.cfg.StuckThreshold))
	if err != nil {
		return nil, unavailable("stale tasks", err)
	}
	for _, t := range stale {
		if !issue.IsStale(t.UpdatedAt, now, s.cfg.StuckThreshold) {
			continue
		}
		issues = append(issues, issue.StuckTask(t))
	}

	logs, err := s.repo.ErrorLogs(ctx, now.Add(-s.cfg.LogWindow), issue.ErrorKeywords, s.cfg.MaxErrorLogs)
	if err != nil {
		return nil, unavailable("error logs", err)
	}
	matched := 0
	for _, e := range logs {
		if matched == s.cfg.MaxErrorLogs {
			break
		}
		if !issue.InWindow(e.CreatedAt, now, s.cfg.LogWindow) || !issue.MatchesErrorKeyword(e.Message) {
			continue
		}
		issues = append(issues, issue.ErrorLog(e))
		matched++
	}

	return issues, nil
}
