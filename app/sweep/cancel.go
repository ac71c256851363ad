package sweep

import "sync/atomic"

// CancelFlag requests cooperative cancellation of a running sweep. It is
// checked before each fetch dispatch and before each entry insert; it never
// interrupts an in-flight network call, so every dispatched fetch still
// produces a result that gets reconciled.
type CancelFlag struct {
	set atomic.Bool
}

func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

func (c *CancelFlag) Cancel() {
	c.set.Store(true)
}

// Cancelled reports whether cancellation was requested. A nil flag reads as
// not cancelled so callers without a cancellation path can pass nil.
func (c *CancelFlag) Cancelled() bool {
	return c != nil && c.set.Load()
}
