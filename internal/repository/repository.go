package repository

import (
	"context"
	"time"

	"github.com/nadmax/nexwatch/internal/model"
)

// TaskRepository is the read surface the monitor needs from the pipeline database.
type TaskRepository interface {
	FailedTasks(ctx context.Context) ([]model.Task, error)
	StaleTasks(ctx context.Context, cutoff time.Time) ([]model.Task, error)
	ErrorLogs(ctx context.Context, since time.Time, keywords []string, limit int) ([]model.LogEntry, error)
	LatestProject(ctx context.Context, nameFilter string) (*model.Project, error)
	TaskCounts(ctx context.Context, projectID string) (map[model.TaskStatus]int, error)
	AgentHeartbeats(ctx context.Context) ([]model.AgentHeartbeat, error)
	Close() error
}
