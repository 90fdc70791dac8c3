package report

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu      sync.Mutex
	paths   []string
	active  int
	overlap bool
}

func (p *recordingProcessor) Process(_ context.Context, path string) (*Result, error) {
	p.mu.Lock()
	p.active++
	if p.active > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.active--
	p.paths = append(p.paths, filepath.Base(path))
	p.mu.Unlock()

	return &Result{}, nil
}

func (p *recordingProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func startWatcher(t *testing.T, dir string, p Processor) *Watcher {
	t.Helper()

	w, err := NewWatcher(dir, p)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	return w
}

func TestWatcher_ProcessesNewReports(t *testing.T) {
	dir := t.TempDir()
	p := &recordingProcessor{}
	startWatcher(t, dir, p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mk3_x_ERROR.md"), []byte("boom"), 0644))

	require.Eventually(t, func() bool {
		return len(p.seen()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"mk3_x_ERROR.md"}, p.seen())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	p := &recordingProcessor{}
	startWatcher(t, dir, p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ALERT_20260105_143022.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mk3_x_ERROR.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mk1_a_COMPLETE.md"), []byte("done"), 0644))

	require.Eventually(t, func() bool {
		return len(p.seen()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"mk1_a_COMPLETE.md"}, p.seen())
}

func TestWatcher_OneCallPerReport(t *testing.T) {
	dir := t.TempDir()
	p := &recordingProcessor{}
	startWatcher(t, dir, p)

	f, err := os.Create(filepath.Join(dir, "mk2_x_QUESTION.md"))
	require.NoError(t, err)
	for range 5 {
		_, err = f.WriteString("more text\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return len(p.seen()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, p.seen(), 1)
}

func TestWatcher_SerializesProcessing(t *testing.T) {
	dir := t.TempDir()
	p := &recordingProcessor{}
	startWatcher(t, dir, p)

	names := []string{"a_x_PROGRESS.md", "b_x_PROGRESS.md", "c_x_PROGRESS.md", "d_x_ERROR.md"}
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	require.Eventually(t, func() bool {
		return len(p.seen()) == len(names)
	}, 2*time.Second, 10*time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.False(t, p.overlap)
	assert.ElementsMatch(t, names, p.paths)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), &recordingProcessor{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), &recordingProcessor{})
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

// blockingProcessor holds each report until released and records whether its context was
// still live when it finished.
type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (p *blockingProcessor) Process(ctx context.Context, _ string) (*Result, error) {
	close(p.started)
	<-p.release
	p.ctxErr <- ctx.Err()
	return &Result{}, nil
}

func TestWatcher_CancelLetsRunningReportFinish(t *testing.T) {
	dir := t.TempDir()
	p := &blockingProcessor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}

	w, err := NewWatcher(dir, p)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mk3_x_ERROR.md"), []byte("boom"), 0644))

	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("report was not processed")
	}
	cancel()
	close(p.release)

	select {
	case err := <-p.ctxErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("processing did not finish")
	}
	w.Stop()
}
