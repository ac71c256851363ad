package feed

import "time"

// Feeds in the wild carry corrupt publish years (0001, 9999). Anything
// outside this window is untrusted and degrades to the current time.
const minTrustedYear = 1971

// SafeEpoch converts a parsed publish date to epoch seconds. It is total:
// a missing or corrupt date yields now instead of an error.
func SafeEpoch(t *time.Time, now time.Time) int64 {
	if t == nil {
		return now.Unix()
	}

	year := t.UTC().Year()
	if year < minTrustedYear || year > now.UTC().Year()+5 {
		return now.Unix()
	}

	return t.Unix()
}
