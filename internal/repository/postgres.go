// Package repository provides read-only PostgreSQL access to the agent pipeline's
// projects, tasks, logs and heartbeats.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/nadmax/nexwatch/internal/model"
)

const DefaultQueryTimeout = 10 * time.Second

type PostgresRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresRepository(connectionString string, queryTimeout time.Duration) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db, queryTimeout: queryTimeout}, nil
}

func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *PostgresRepository) FailedTasks(ctx context.Context) ([]model.Task, error) {
	query := `
		SELECT t.id, t.name, t.task_type, t.status, t.project_id, p.name, t.updated_at
		FROM tasks t
		JOIN projects p ON t.project_id = p.id
		WHERE t.status IN ('failed', 'blocked')
		AND p.status = 'in_progress'
	`

	return r.queryTasks(ctx, query)
}

func (r *PostgresRepository) StaleTasks(ctx context.Context, cutoff time.Time) ([]model.Task, error) {
	query := `
		SELECT t.id, t.name, t.task_type, t.status, t.project_id, p.name, t.updated_at
		FROM tasks t
		JOIN projects p ON t.project_id = p.id
		WHERE t.status = 'in_progress'
		AND t.updated_at < $1
	`

	return r.queryTasks(ctx, query, cutoff)
}

func (r *PostgresRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var taskType sql.NullString
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&taskType,
			&t.Status,
			&t.ProjectID,
			&t.ProjectName,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}

		t.Type = taskType.String
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// ErrorLogs returns log entries newer than since whose message contains any keyword,
// newest first. Both conditions must hold.
func (r *PostgresRepository) ErrorLogs(ctx context.Context, since time.Time, keywords []string, limit int) ([]model.LogEntry, error) {
	patterns := make([]string, len(keywords))
	for i, kw := range keywords {
		patterns[i] = "%" + kw + "%"
	}

	query := `
		SELECT agent_name, COALESCE(message, ''), created_at, COALESCE(project_id::text, '')
		FROM project_logs
		WHERE message ILIKE ANY($1)
		AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, pq.Array(patterns), since, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(
			&e.AgentName,
			&e.Message,
			&e.CreatedAt,
			&e.ProjectID,
		); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// LatestProject returns the newest project whose name contains nameFilter, or nil when
// none exists. An empty filter matches every project.
func (r *PostgresRepository) LatestProject(ctx context.Context, nameFilter string) (*model.Project, error) {
	query := `
		SELECT id, name, status, created_at
		FROM projects
		WHERE name ILIKE $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var p model.Project
	err := r.db.QueryRowContext(ctx, query, "%"+nameFilter+"%").Scan(
		&p.ID,
		&p.Name,
		&p.Status,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PostgresRepository) TaskCounts(ctx context.Context, projectID string) (map[model.TaskStatus]int, error) {
	query := `
		SELECT status, COUNT(*) as count
		FROM tasks
		WHERE project_id = $1
		GROUP BY status
		ORDER BY status
	`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status model.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		counts[status] = count
	}

	return counts, rows.Err()
}

func (r *PostgresRepository) AgentHeartbeats(ctx context.Context) ([]model.AgentHeartbeat, error) {
	query := `
		SELECT agent_name, COALESCE(status, ''), last_heartbeat
		FROM agent_status
		ORDER BY agent_name
	`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var agents []model.AgentHeartbeat
	for rows.Next() {
		var a model.AgentHeartbeat
		var lastHeartbeat sql.NullTime
		if err := rows.Scan(&a.AgentName, &a.Status, &lastHeartbeat); err != nil {
			return nil, err
		}

		if lastHeartbeat.Valid {
			hb := lastHeartbeat.Time
			a.LastHeartbeat = &hb
		}

		agents = append(agents, a)
	}

	return agents, rows.Err()
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
