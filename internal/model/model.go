// Package model defines the read-only records the monitor loads from the pipeline database:
// projects, tasks, agent log entries and agent heartbeats.
package model

import "time"

type (
	TaskStatus    string
	ProjectStatus string
	Task          struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Type        string     `json:"task_type"`
		Status      TaskStatus `json:"status"`
		ProjectID   string     `json:"project_id"`
		ProjectName string     `json:"project_name"`
		UpdatedAt   time.Time  `json:"updated_at"`
	}
	Project struct {
		ID        string        `json:"id"`
		Name      string        `json:"name"`
		Status    ProjectStatus `json:"status"`
		CreatedAt time.Time     `json:"created_at"`
	}
	LogEntry struct {
		AgentName string    `json:"agent_name"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"created_at"`
		ProjectID string    `json:"project_id"`
	}
	AgentHeartbeat struct {
		AgentName     string     `json:"agent_name"`
		Status        string     `json:"status"`
		LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	}
)

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusFailed     TaskStatus = "failed"
	StatusCompleted  TaskStatus = "completed"
)

const (
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

// IsFailure reports whether the status marks a task that needs intervention.
func (s TaskStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusBlocked
}
