package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/api"
	"github.com/nadmax/nexwatch/internal/board"
	"github.com/nadmax/nexwatch/internal/config"
	"github.com/nadmax/nexwatch/internal/fsutil"
	"github.com/nadmax/nexwatch/internal/notify"
	"github.com/nadmax/nexwatch/internal/report"
	"github.com/nadmax/nexwatch/internal/repository"
	"github.com/nadmax/nexwatch/internal/scanner"
	"github.com/nadmax/nexwatch/internal/watchdog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	if err := fsutil.EnsureDirs(cfg.ReportsDir, cfg.GuidanceDir); err != nil {
		log.Fatal(err)
	}

	repo, err := repository.NewPostgresRepository(cfg.PostgresDSN, cfg.QueryTimeout)
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := repo.Close(); err != nil {
			log.Printf("failed to close Postgres repository: %v", err)
		}
	}()

	notifiers, feed, err := notify.Setup(cfg)
	if err != nil {
		log.Fatal(err)
	}

	var alertFeed api.AlertFeed
	if feed != nil {
		alertFeed = feed
		defer func() {
			if err := feed.Close(); err != nil {
				log.Printf("failed to close alert feed: %v", err)
			}
		}()
	}

	sc := scanner.NewScanner(repo, scanner.Config{
		StuckThreshold: cfg.StuckThreshold,
		LogWindow:      cfg.LogWindow,
		ProjectName:    cfg.ProjectName,
	})
	writer := alert.NewWriter(cfg.ReportsDir, cfg.GuidanceDir)
	dispatcher := alert.NewDispatcher(writer, notifiers...)

	runner := watchdog.NewRunner(sc, dispatcher)
	runner.SetPollInterval(cfg.PollInterval)
	runner.SetBoard(board.New(os.Stdout, cfg.ClearScreen))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewAPI(runner, report.NewSnapshotStore(cfg.StatusFile), alertFeed),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Printf("Server starting on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server failed: %v", err)
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("failed to shut down HTTP server: %v", err)
			}
		}()
	}

	log.Printf("Starting database watchdog, polling every %s", cfg.PollInterval)
	log.Printf("Alerts are written to %s", writer.Dir())
	runner.Start(ctx)

	log.Println("Watchdog stopped.")
}
