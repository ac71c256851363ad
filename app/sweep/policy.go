package sweep

import "time"

// Policy maps a feed's observed volume to its polling interval. Low-volume
// feeds are polled eagerly (a new item there matters more and the request is
// cheap); high-volume feeds are polled less often to bound total request
// volume.
type Policy struct {
	Low  time.Duration
	Med  time.Duration
	High time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Low:  20 * time.Minute,
		Med:  time.Hour,
		High: 2 * time.Hour,
	}
}

// Interval picks the polling tier for a feed with the given number of
// entries inside the retention window.
func (p Policy) Interval(monthCount int) time.Duration {
	switch {
	case monthCount <= 10:
		return p.Low
	case monthCount <= 200:
		return p.Med
	default:
		return p.High
	}
}

const (
	backoffBase      = time.Minute
	backoffCeiling   = 6 * time.Hour
	backoffDoublings = 8
)

// Backoff returns the retry delay after the given consecutive failure
// count: a 60s base doubled per failure, flat at the 6h ceiling from the
// 8th failure on.
func Backoff(failCount int) time.Duration {
	if failCount < 1 {
		failCount = 1
	}
	if failCount >= backoffDoublings {
		return backoffCeiling
	}
	return backoffBase << failCount
}
