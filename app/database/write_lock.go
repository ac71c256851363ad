package database

import "sync"

// WriteLock serializes every mutating path against the store: sweeps,
// single-feed refreshes, feed edits and bulk imports. SQLite allows one
// writer at a time; this gate keeps independent goroutines from ever
// contending inside the driver.
type WriteLock struct {
	mu sync.Mutex
}

func NewWriteLock() *WriteLock {
	return &WriteLock{}
}

func (l *WriteLock) Lock() {
	l.mu.Lock()
}

func (l *WriteLock) Unlock() {
	l.mu.Unlock()
}

// TryLock acquires the gate without blocking. The background scheduler uses
// it so a contended tick is skipped instead of queued.
func (l *WriteLock) TryLock() bool {
	return l.mu.TryLock()
}
