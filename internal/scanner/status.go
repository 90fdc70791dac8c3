package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nadmax/nexwatch/internal/model"
)

const (
	ActiveWindow  = 120 * time.Second
	LivenessNever = "NEVER"
	LivenessAlive = "ACTIVE"
)

type Status struct {
	Project    *model.Project           `json:"project"`
	TaskCounts map[model.TaskStatus]int `json:"tasks"`
	Agents     []AgentLiveness          `json:"agents"`
	CheckedAt  time.Time                `json:"checked_at"`
}

type AgentLiveness struct {
	model.AgentHeartbeat
	Liveness string `json:"liveness"`
}

type StatusCount struct {
	Status model.TaskStatus
	Count  int
}

// Status builds the project, task histogram and agent liveness view at now.
func (s *Scanner) Status(ctx context.Context, now time.Time) (*Status, error) {
	st := &Status{
		TaskCounts: make(map[model.TaskStatus]int),
		CheckedAt:  now,
	}

	project, err := s.repo.LatestProject(ctx, s.cfg.ProjectName)
	if err != nil {
		return nil, unavailable("project", err)
	}
	if project == nil {
		return st, nil
	}
	st.Project = project

	counts, err := s.repo.TaskCounts(ctx, project.ID)
	if err != nil {
		return nil, unavailable("task counts", err)
	}
	st.TaskCounts = counts

	heartbeats, err := s.repo.AgentHeartbeats(ctx)
	if err != nil {
		return nil, unavailable("agent heartbeats", err)
	}
	for _, hb := range heartbeats {
		st.Agents = append(st.Agents, AgentLiveness{
			AgentHeartbeat: hb,
			Liveness:       Liveness(hb.LastHeartbeat, now),
		})
	}

	return st, nil
}

// Liveness classifies a heartbeat as ACTIVE, "<minutes>m ago" or NEVER.
func Liveness(lastHeartbeat *time.Time, now time.Time) string {
	if lastHeartbeat == nil {
		return LivenessNever
	}

	age := now.Sub(*lastHeartbeat)
	if age < ActiveWindow {
		return LivenessAlive
	}

	return fmt.Sprintf("%dm ago", int(age/time.Minute))
}

// SortedCounts returns the histogram ordered by status name.
func (st *Status) SortedCounts() []StatusCount {
	out := make([]StatusCount, 0, len(st.TaskCounts))
	for status, count := range st.TaskCounts {
		out = append(out, StatusCount{Status: status, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Status < out[j].Status
	})

	return out
}

func (st *Status) TotalTasks() int {
	total := 0
	for _, c := range st.TaskCounts {
		total += c
	}

	return total
}

func (st *Status) AgentsActive() int {
	n := 0
	for _, a := range st.Agents {
		if a.Liveness == LivenessAlive {
			n++
		}
	}

	return n
}
