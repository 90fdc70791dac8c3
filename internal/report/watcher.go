package report

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 100 * time.Millisecond

// Processor handles one report file.
type Processor interface {
	Process(ctx context.Context, path string) (*Result, error)
}

// Watcher turns file creations in the reports directory into Process calls. All calls run
// on one goroutine, so snapshot updates never interleave.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	processor Processor
	debounce  time.Duration
	queue     chan string
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]*time.Timer
}

func NewWatcher(dir string, p Processor) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		processor: p,
		debounce:  DefaultDebounce,
		queue:     make(chan string, 100),
		done:      make(chan struct{}),
		pending:   make(map[string]*time.Timer),
	}, nil
}

func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. It returns once the directory is registered.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}

	log.Printf("[watcher] Watching %s for reports", w.dir)

	w.wg.Add(2)
	go w.processEvents()
	go w.processQueue(ctx)

	return nil
}

// Stop stops accepting events and waits for the report being processed to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()

		w.pendingMu.Lock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.pendingMu.Unlock()
	})

	w.wg.Wait()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		}
	}
}

// handleEvent schedules newly created reports. Writes that follow a creation push the
// schedule back so the agent can finish writing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !IsReportFile(event.Name) {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	timer, scheduled := w.pending[event.Name]
	switch {
	case event.Has(fsnotify.Create) && !scheduled:
		path := event.Name
		w.pending[path] = time.AfterFunc(w.debounce, func() {
			w.enqueue(path)
		})
	case event.Has(fsnotify.Write) && scheduled:
		// A timer that already fired is mid-enqueue and must not be re-armed.
		if timer.Stop() {
			timer.Reset(w.debounce)
		}
	}
}

func (w *Watcher) enqueue(path string) {
	w.pendingMu.Lock()
	delete(w.pending, path)
	w.pendingMu.Unlock()

	select {
	case w.queue <- path:
	case <-w.done:
	}
}

// processQueue stops taking reports once ctx is cancelled, but the report in hand is
// processed with a context that outlives the cancellation.
func (w *Watcher) processQueue(ctx context.Context) {
	defer w.wg.Done()

	processCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case path := <-w.queue:
			if _, err := w.processor.Process(processCtx, path); err != nil {
				log.Printf("[watcher] %v", err)
			}
		}
	}
}
