package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nadmax/nexwatch/internal/model"
)

// MockRepository is an in-memory TaskRepository that applies the same filters as the
// PostgreSQL queries. It is used by tests in other packages.
type MockRepository struct {
	mu                 sync.Mutex
	Projects           []model.Project
	Tasks              []model.Task
	Logs               []model.LogEntry
	Heartbeats         []model.AgentHeartbeat
	StaleTasksCalls    []time.Time
	ErrorLogsCalls     []ErrorLogsCall
	FailedTasksError   error
	StaleTasksError    error
	ErrorLogsError     error
	LatestProjectError error
	TaskCountsError    error
	HeartbeatsError    error
	Closed             bool
}

type ErrorLogsCall struct {
	Since    time.Time
	Keywords []string
	Limit    int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

func (m *MockRepository) AddProject(p model.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Projects = append(m.Projects, p)
}

func (m *MockRepository) AddTask(t model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Tasks = append(m.Tasks, t)
}

func (m *MockRepository) AddLog(e model.LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Logs = append(m.Logs, e)
}

func (m *MockRepository) project(id string) (model.Project, bool) {
	for _, p := range m.Projects {
		if p.ID == id {
			return p, true
		}
	}

	return model.Project{}, false
}

// withProject mirrors the inner join on projects.
func (m *MockRepository) withProject(t model.Task) (model.Task, bool) {
	p, ok := m.project(t.ProjectID)
	if !ok {
		return t, false
	}

	t.ProjectName = p.Name
	return t, true
}

func (m *MockRepository) FailedTasks(_ context.Context) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailedTasksError != nil {
		return nil, m.FailedTasksError
	}

	var out []model.Task
	for _, t := range m.Tasks {
		joined, ok := m.withProject(t)
		if !ok || !t.Status.IsFailure() {
			continue
		}
		if p, _ := m.project(t.ProjectID); p.Status != model.ProjectInProgress {
			continue
		}

		out = append(out, joined)
	}

	return out, nil
}

func (m *MockRepository) StaleTasks(_ context.Context, cutoff time.Time) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StaleTasksCalls = append(m.StaleTasksCalls, cutoff)

	if m.StaleTasksError != nil {
		return nil, m.StaleTasksError
	}

	var out []model.Task
	for _, t := range m.Tasks {
		joined, ok := m.withProject(t)
		if !ok || t.Status != model.StatusInProgress || !t.UpdatedAt.Before(cutoff) {
			continue
		}

		out = append(out, joined)
	}

	return out, nil
}

func (m *MockRepository) ErrorLogs(_ context.Context, since time.Time, keywords []string, limit int) ([]model.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ErrorLogsCalls = append(m.ErrorLogsCalls, ErrorLogsCall{Since: since, Keywords: keywords, Limit: limit})

	if m.ErrorLogsError != nil {
		return nil, m.ErrorLogsError
	}

	var out []model.LogEntry
	for _, e := range m.Logs {
		if !e.CreatedAt.After(since) || !containsAny(e.Message, keywords) {
			continue
		}

		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func containsAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}

	return false
}

func (m *MockRepository) LatestProject(_ context.Context, nameFilter string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LatestProjectError != nil {
		return nil, m.LatestProjectError
	}

	var latest *model.Project
	for i := range m.Projects {
		p := m.Projects[i]
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(nameFilter)) {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = &p
		}
	}

	return latest, nil
}

func (m *MockRepository) TaskCounts(_ context.Context, projectID string) (map[model.TaskStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TaskCountsError != nil {
		return nil, m.TaskCountsError
	}

	counts := make(map[model.TaskStatus]int)
	for _, t := range m.Tasks {
		if t.ProjectID == projectID {
			counts[t.Status]++
		}
	}

	return counts, nil
}

func (m *MockRepository) AgentHeartbeats(_ context.Context) ([]model.AgentHeartbeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.HeartbeatsError != nil {
		return nil, m.HeartbeatsError
	}

	out := make([]model.AgentHeartbeat, len(m.Heartbeats))
	copy(out, m.Heartbeats)
	return out, nil
}

func (m *MockRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}
