// Package watchdog runs the database polling loop and alerts when the issue set changes.
package watchdog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/board"
	"github.com/nadmax/nexwatch/internal/issue"
	"github.com/nadmax/nexwatch/internal/metrics"
	"github.com/nadmax/nexwatch/internal/scanner"
)

const DefaultPollInterval = 30 * time.Second

// Classifier is the read side of a cycle.
type Classifier interface {
	Scan(ctx context.Context, now time.Time) ([]issue.Issue, error)
	Status(ctx context.Context, now time.Time) (*scanner.Status, error)
}

// State is the outcome of the latest cycle. Issues is what the next cycle compares against.
type State struct {
	Issues        []issue.Issue   `json:"issues"`
	Status        *scanner.Status `json:"status,omitempty"`
	CheckedAt     time.Time       `json:"checked_at,omitzero"`
	LastAlertID   string          `json:"last_alert_id,omitempty"`
	LastAlertAt   time.Time       `json:"last_alert_at,omitzero"`
	LastAlertPath string          `json:"last_alert_path,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// ShouldAlert reports whether cur warrants a new alert given the previous cycle's issues.
func ShouldAlert(prev, cur []issue.Issue) bool {
	return len(cur) > 0 && !issue.SameSet(prev, cur)
}

type Runner struct {
	classifier   Classifier
	dispatcher   *alert.Dispatcher
	board        *board.Board
	pollInterval time.Duration
	now          func() time.Time

	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	state State
}

func NewRunner(c Classifier, d *alert.Dispatcher) *Runner {
	return &Runner{
		classifier:   c,
		dispatcher:   d,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		stop:         make(chan struct{}),
		state:        State{Issues: []issue.Issue{}},
	}
}

// SetPollInterval changes the cycle interval. Non-positive values are ignored.
func (r *Runner) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.pollInterval = d
}

// SetBoard enables the console board. Without one the runner only logs.
func (r *Runner) SetBoard(b *board.Board) {
	r.board = b
}

// Start runs one cycle immediately and then one per poll interval until Stop is called
// or ctx is cancelled. Cancelling ctx only ends the loop: a cycle already running keeps its
// queries and alert delivery, bounded by the repository's query timeout.
func (r *Runner) Start(ctx context.Context) {
	log.Printf("[watchdog] started, polling every %s", r.pollInterval)

	cycleCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		next := r.Cycle(cycleCtx, r.Snapshot())
		r.mu.Lock()
		r.state = next
		r.mu.Unlock()

		select {
		case <-r.stop:
			log.Printf("[watchdog] stopped")
			return
		case <-ctx.Done():
			log.Printf("[watchdog] stopped: %v", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// Snapshot returns the state of the last completed cycle.
func (r *Runner) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Cycle runs one scan against prev and returns the new state. A failed scan keeps prev's
// issues so the next successful cycle still compares against the last known set. A failed
// alert delivery still advances the issue set.
func (r *Runner) Cycle(ctx context.Context, prev State) State {
	now := r.now()
	start := time.Now()

	issues, err := r.classifier.Scan(ctx, now)
	var status *scanner.Status
	if err == nil {
		status, err = r.classifier.Status(ctx, now)
	}
	metrics.RecordScan(err, time.Since(start))

	if err != nil {
		log.Printf("[watchdog] cycle failed: %v", err)
		next := prev
		next.CheckedAt = now
		next.LastError = err.Error()
		r.show(next, "", err)
		return next
	}

	next := prev
	next.Issues = issues
	next.Status = status
	next.CheckedAt = now
	next.LastError = ""
	updateGauges(issues, status)

	var alertPath string
	if r.dispatcher != nil && ShouldAlert(prev.Issues, issues) {
		a := alert.New(alert.SourceDatabase, issues, now)
		log.Printf("[watchdog] %s", a.Summary())

		// Delivery failures are already logged by the dispatcher.
		alertPath, _ = r.dispatcher.Dispatch(ctx, a)
		next.LastAlertID = a.ID
		next.LastAlertAt = now
		if alertPath != "" {
			next.LastAlertPath = alertPath
		}
	}

	r.show(next, alertPath, nil)
	return next
}

func (r *Runner) show(s State, alertPath string, err error) {
	if r.board == nil {
		return
	}

	r.board.Show(board.View{
		Status:    s.Status,
		Issues:    s.Issues,
		CheckedAt: s.CheckedAt,
		Next:      r.pollInterval,
		AlertPath: alertPath,
		Err:       err,
	})
}

func updateGauges(issues []issue.Issue, status *scanner.Status) {
	byKind := map[string]int{
		string(issue.KindFailedTask): 0,
		string(issue.KindStuckTask):  0,
		string(issue.KindErrorLog):   0,
	}
	for _, is := range issues {
		byKind[string(is.Kind)]++
	}
	metrics.UpdateIssueGauges(byKind)

	if status == nil {
		return
	}

	byStatus := make(map[string]int, len(status.TaskCounts))
	for s, c := range status.TaskCounts {
		byStatus[string(s)] = c
	}
	metrics.UpdateProjectTasks(byStatus)
	metrics.UpdateAgentsActive(status.AgentsActive())
}
