package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localrss/localrss/app/api"
	"github.com/localrss/localrss/app/cfg"
	"github.com/localrss/localrss/app/database"
	"github.com/localrss/localrss/app/feed"
	"github.com/localrss/localrss/app/fetch"
	"github.com/localrss/localrss/app/jobs"
	"github.com/localrss/localrss/app/scheduler"
	"github.com/localrss/localrss/app/seed"
	"github.com/localrss/localrss/app/sweep"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting LocalRSS server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	writeLock := database.NewWriteLock()

	ctx := context.Background()

	imported, err := seed.ImportIfEmpty(ctx, db, appCfg.SeedFile)
	if err != nil {
		slog.Warn("Seed import failed", "file", appCfg.SeedFile, "error", err)
	} else if imported > 0 {
		slog.Info("Imported seed feeds", "file", appCfg.SeedFile, "count", imported)
	}

	fetcher := fetch.NewClient(
		appCfg.MaxConcurrency,
		appCfg.PerHostLimit,
		time.Duration(appCfg.FetchTimeout)*time.Second,
		appCfg.UserAgent,
	)
	parser := feed.NewParser()

	policy := sweep.Policy{
		Low:  time.Duration(appCfg.IntervalLow) * time.Second,
		Med:  time.Duration(appCfg.IntervalMed) * time.Second,
		High: time.Duration(appCfg.IntervalHigh) * time.Second,
	}
	retention := time.Duration(appCfg.RetentionDays) * 24 * time.Hour

	orchestrator := sweep.NewOrchestrator(db, fetcher, parser, policy, retention, appCfg.MaxConcurrency)

	jobManager := jobs.NewManager(orchestrator.Run, writeLock)

	// The scheduler runs due-feeds sweeps directly, outside the job manager,
	// so ticks never collide with a manual update job: the write lock
	// arbitrates, and a contended tick is skipped.
	dueSweep := func(ctx context.Context) error {
		_, err := orchestrator.Run(ctx, sweep.Scope{OnlyDue: true}, nil, nil)
		return err
	}
	sched := scheduler.NewScheduler(dueSweep, writeLock, time.Duration(appCfg.SchedulerTick)*time.Second)
	sched.Start()
	defer sched.Stop()
	slog.Info("Background scheduler started", "tick_seconds", appCfg.SchedulerTick)

	handler := api.NewHandler(db, jobManager, sched, orchestrator, writeLock,
		appCfg.RetentionDays, appCfg.Version)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
