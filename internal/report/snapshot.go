package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/nadmax/nexwatch/internal/fsutil"
)

const snapshotLockTimeout = 5 * time.Second

// Entry is the latest known state of one agent.
type Entry struct {
	Status         Tag       `json:"status"`
	LastReport     string    `json:"last_report"`
	Timestamp      time.Time `json:"timestamp"`
	NeedsAttention bool      `json:"needs_attention"`
}

// Snapshot maps agent name to its latest entry.
type Snapshot map[string]Entry

// Agents returns the agent names in sorted order.
func (s Snapshot) Agents() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (s Snapshot) NeedingAttention() int {
	n := 0
	for _, e := range s {
		if e.NeedsAttention {
			n++
		}
	}

	return n
}

// SnapshotStore persists the snapshot as one JSON document. Updates are serialised within
// the process by a mutex and across processes by an advisory lock on <path>.lock.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

func (s *SnapshotStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (s *SnapshotStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading status file: %w", err)
	}

	snap := Snapshot{}
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding status file: %w", err)
	}

	return snap, nil
}

// Update replaces the entry for agent and rewrites the whole snapshot.
func (s *SnapshotStore) Update(agent string, entry Entry) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("failed to release status file lock: %v", err)
		}
	}()

	snap, err := s.Load()
	if err != nil {
		snap, err = s.quarantine(err)
		if err != nil {
			return nil, err
		}
	}

	snap[agent] = entry

	if err := fsutil.AtomicWriteJSON(s.path, snap); err != nil {
		return nil, fmt.Errorf("writing status file: %w", err)
	}

	return snap, nil
}

// quarantine moves an unreadable snapshot aside so updates can continue from empty.
func (s *SnapshotStore) quarantine(cause error) (Snapshot, error) {
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, aside); err != nil {
		return nil, fmt.Errorf("%w (moving aside failed: %w)", cause, err)
	}

	log.Printf("[snapshot] %v; moved to %s and starting fresh", cause, aside)
	return Snapshot{}, nil
}

func (s *SnapshotStore) lock() (*flock.Flock, error) {
	lockPath := s.path + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), snapshotLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring status file lock: %w", err)
	}
	if !locked {
		return nil, errors.New("timeout waiting for status file lock")
	}

	return lock, nil
}
