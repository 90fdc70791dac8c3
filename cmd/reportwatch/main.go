package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/board"
	"github.com/nadmax/nexwatch/internal/config"
	"github.com/nadmax/nexwatch/internal/fsutil"
	"github.com/nadmax/nexwatch/internal/notify"
	"github.com/nadmax/nexwatch/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if err := fsutil.EnsureDirs(cfg.ReportsDir, cfg.GuidanceDir); err != nil {
		log.Fatal(err)
	}

	store := report.NewSnapshotStore(cfg.StatusFile)

	b := board.New(os.Stdout, false)
	b.Banner(cfg.ReportsDir, cfg.GuidanceDir, cfg.StatusFile)
	if snap, err := store.Load(); err != nil {
		log.Printf("failed to read agent status: %v", err)
	} else {
		b.Agents(snap)
	}

	notifiers, feed, err := notify.Setup(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if feed != nil {
		defer func() {
			if err := feed.Close(); err != nil {
				log.Printf("failed to close alert feed: %v", err)
			}
		}()
	}

	// Attention alerts from reports only go to notifiers; the report itself is the artifact.
	var dispatcher *alert.Dispatcher
	if len(notifiers) > 0 {
		dispatcher = alert.NewDispatcher(nil, notifiers...)
	}

	handler := report.NewHandler(store, dispatcher, cfg.GuidanceDir, os.Stdout)

	w, err := report.NewWatcher(cfg.ReportsDir, handler)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println(" Watching for agent reports...")
	fmt.Println(" Press Ctrl+C to stop")

	<-ctx.Done()

	log.Println("Shutting down report watcher...")
	w.Stop()
	log.Println("Watchdog stopped.")
}
