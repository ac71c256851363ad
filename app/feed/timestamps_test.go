package feed

import (
	"testing"
	"time"
)

func TestSafeEpochValidDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	published := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)

	got := SafeEpoch(&published, now)
	if got != published.Unix() {
		t.Errorf("Expected %d, got %d", published.Unix(), got)
	}
}

func TestSafeEpochNilDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := SafeEpoch(nil, now)
	if got != now.Unix() {
		t.Errorf("Expected %d for nil date, got %d", now.Unix(), got)
	}
}

func TestSafeEpochCorruptYears(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
	}{
		{"year 0001", time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"year 1969", time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC)},
		{"year 1970", time.Date(1970, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"year 9999", time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got := SafeEpoch(&tt.date, now)
		if got != now.Unix() {
			t.Errorf("Expected %s to degrade to now (%d), got %d", tt.name, now.Unix(), got)
		}
	}
}

func TestSafeEpochNearFutureAllowed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Up to now+5 years is trusted; beyond that is corrupt.
	nearFuture := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := SafeEpoch(&nearFuture, now); got != nearFuture.Unix() {
		t.Errorf("Expected near-future date to be trusted, got %d", got)
	}

	farFuture := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := SafeEpoch(&farFuture, now); got != now.Unix() {
		t.Errorf("Expected far-future date to degrade to now, got %d", got)
	}
}
