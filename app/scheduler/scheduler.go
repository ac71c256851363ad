package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/localrss/localrss/app/database"
)

// SweepFunc runs one due-feeds-only sweep synchronously.
type SweepFunc func(ctx context.Context) error

// Scheduler is the periodic trigger: on every tick it runs a due-feeds
// sweep, but only if scheduling is enabled and the write lock is free.
// A contended tick is skipped outright, never queued.
type Scheduler struct {
	runSweep  SweepFunc
	writeLock *database.WriteLock
	interval  time.Duration
	enabled   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewScheduler(runSweep SweepFunc, writeLock *database.WriteLock, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runSweep:  runSweep,
		writeLock: writeLock,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.enabled.Store(true)
	return s
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) tick() {
	if !s.enabled.Load() {
		return
	}

	if !s.writeLock.TryLock() {
		slog.Debug("Write lock contended, skipping scheduler tick")
		return
	}
	defer s.writeLock.Unlock()

	// Errors are swallowed; the next tick retries from current due-times.
	if err := s.runSweep(s.ctx); err != nil {
		slog.Warn("Scheduled sweep failed", "error", err)
	}
}

func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	slog.Info("Scheduler state changed", "enabled", enabled)
}

func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}
