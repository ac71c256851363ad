package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/localrss/localrss/app/database"
	"github.com/localrss/localrss/app/sweep"
)

type State string

const (
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateError      State = "error"
)

// Snapshot is an immutable view of one job. Progress fields are updated
// atomically under the manager's lock, so a reader never observes a
// partially applied tuple.
type Snapshot struct {
	ID           string `json:"job_id"`
	State        State  `json:"state"`
	Total        int    `json:"total"`
	Checked      int    `json:"checked"`
	Updated      int    `json:"updated"`
	Errors       int    `json:"errors"`
	CurrentURL   string `json:"current_url,omitempty"`
	StartedAt    int64  `json:"started_ts"`
	LastChangeAt int64  `json:"last_change_ts"`
	EndedAt      int64  `json:"ended_ts,omitempty"`
	Error        string `json:"error,omitempty"`
}

type job struct {
	Snapshot
	cancel *sweep.CancelFlag
}

// Runner executes one sweep. Injected so tests can substitute the real
// orchestrator.
type Runner func(ctx context.Context, scope sweep.Scope, cancel *sweep.CancelFlag,
	progress sweep.Progress) (sweep.Stats, error)

// Manager wraps sweep runs in cancellable, observable jobs and enforces
// that at most one sweep is active system-wide.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*job
	activeID  string
	runner    Runner
	writeLock *database.WriteLock
}

func NewManager(runner Runner, writeLock *database.WriteLock) *Manager {
	return &Manager{
		jobs:      make(map[string]*job),
		runner:    runner,
		writeLock: writeLock,
	}
}

// StartSweep launches a sweep job and returns its id. If a job is already
// active the existing id is returned instead of starting a second sweep.
func (m *Manager) StartSweep(fullSweep bool) string {
	m.mu.Lock()

	if m.activeID != "" {
		if active, ok := m.jobs[m.activeID]; ok &&
			(active.State == StateRunning || active.State == StateCancelling) {
			id := m.activeID
			m.mu.Unlock()
			return id
		}
	}

	now := time.Now().Unix()
	j := &job{
		Snapshot: Snapshot{
			ID:           newJobID(),
			State:        StateRunning,
			StartedAt:    now,
			LastChangeAt: now,
		},
		cancel: sweep.NewCancelFlag(),
	}
	m.jobs[j.ID] = j
	m.activeID = j.ID
	m.mu.Unlock()

	go m.run(j.ID, j.cancel, fullSweep)

	return j.ID
}

func (m *Manager) run(jobID string, cancel *sweep.CancelFlag, fullSweep bool) {
	// The sweep outlives the request that started it, so it runs on its own
	// context. Stopping a job goes through the cancel flag, never through
	// context cancellation.
	ctx := context.Background()

	progress := func(stats sweep.Stats, currentURL string) {
		m.updateProgress(jobID, stats, currentURL)
	}

	scope := sweep.Scope{OnlyDue: !fullSweep}

	m.writeLock.Lock()
	stats, err := m.runner(ctx, scope, cancel, progress)
	m.writeLock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}

	j.Total = stats.Total
	j.Checked = stats.Checked
	j.Updated = stats.Updated
	j.Errors = stats.Errors
	j.EndedAt = time.Now().Unix()
	j.LastChangeAt = j.EndedAt

	switch {
	case err != nil:
		j.State = StateError
		j.Error = err.Error()
		slog.Error("Sweep job failed", "job_id", jobID, "error", err)
	case cancel.Cancelled():
		j.State = StateCancelled
		slog.Info("Sweep job cancelled", "job_id", jobID, "checked", stats.Checked, "updated", stats.Updated, "errors", stats.Errors)
	default:
		j.State = StateDone
		slog.Info("Sweep job completed", "job_id", jobID, "total", stats.Total, "updated", stats.Updated, "errors", stats.Errors)
	}
}

func (m *Manager) updateProgress(jobID string, stats sweep.Stats, currentURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}

	j.Total = stats.Total
	j.Checked = stats.Checked
	j.Updated = stats.Updated
	j.Errors = stats.Errors
	j.CurrentURL = currentURL
	j.LastChangeAt = time.Now().Unix()
}

// Cancel requests cooperative cancellation. It reports false for an unknown
// or already-terminal job; confirmation arrives via the eventual cancelled
// state, not instantly.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return false
	}
	if j.State != StateRunning && j.State != StateCancelling {
		return false
	}

	j.cancel.Cancel()
	j.State = StateCancelling
	j.LastChangeAt = time.Now().Unix()
	return true
}

// Get returns a copy of the job's snapshot.
func (m *Manager) Get(jobID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return j.Snapshot, true
}

// IsActive reports whether a sweep job is currently running or cancelling.
// Feed edits and imports are refused while this holds.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID == "" {
		return false
	}
	j, ok := m.jobs[m.activeID]
	return ok && (j.State == StateRunning || j.State == StateCancelling)
}

func newJobID() string {
	return fmt.Sprintf("job_%d_%d", time.Now().UnixNano(), rand.Intn(10000))
}
