package fetch

import (
	"context"
	"net/url"
	"sync"
)

// hostLimiter bounds in-flight requests per remote host so one slow or
// rate-limited server never absorbs the whole fetch budget.
type hostLimiter struct {
	mu         sync.Mutex
	limit      int
	semaphores map[string]chan struct{}
}

func newHostLimiter(limit int) *hostLimiter {
	return &hostLimiter{
		limit:      limit,
		semaphores: make(map[string]chan struct{}),
	}
}

func (hl *hostLimiter) acquire(ctx context.Context, host string) error {
	hl.mu.Lock()
	sem, ok := hl.semaphores[host]
	if !ok {
		sem = make(chan struct{}, hl.limit)
		hl.semaphores[host] = sem
	}
	hl.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (hl *hostLimiter) release(host string) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if sem, ok := hl.semaphores[host]; ok {
		<-sem
	}
}

// hostOf extracts the host from a URL, falling back to the full URL so a
// malformed one still gets a (degenerate) limiter bucket.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
