package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/localrss/localrss/app/database"
	"github.com/localrss/localrss/app/feed"
	"github.com/localrss/localrss/app/fetch"
)

// Reconciler turns one fetch result into store mutations: feed scheduling
// fields always, entry inserts and volume statistics on a successful body.
// All of its work is synchronous and runs on the sweep's single result loop,
// inside the sweep transaction.
type Reconciler struct {
	feeds   database.FeedRepository
	entries database.EntryRepository
	parser  *feed.Parser
	policy  Policy
}

func NewReconciler(feeds database.FeedRepository, entries database.EntryRepository,
	parser *feed.Parser, policy Policy) *Reconciler {
	return &Reconciler{
		feeds:   feeds,
		entries: entries,
		parser:  parser,
		policy:  policy,
	}
}

// Apply reconciles one feed's fetch result. It reports whether the feed
// gained at least one new entry. A returned error marks the feed as errored
// for the sweep's accounting but must not abort the sweep.
func (r *Reconciler) Apply(ctx context.Context, f database.Feed, res fetch.Result,
	cutoff int64, cancel *CancelFlag) (bool, error) {

	now := time.Now()

	switch res.Status {
	case fetch.StatusNotModified:
		next := now.Add(r.policy.Interval(f.MonthCount)).Unix()
		if err := r.feeds.MarkFeedUnmodified(ctx, f.ID, now.Unix(), next); err != nil {
			return false, err
		}
		return false, nil

	case fetch.StatusHTTPError, fetch.StatusException:
		failCount := f.FailCount + 1
		next := now.Add(Backoff(failCount)).Unix()
		if err := r.feeds.MarkFeedFailure(ctx, f.ID, now.Unix(), failCount, next); err != nil {
			return false, err
		}
		return false, nil
	}

	parsed := r.parser.Run(res.Body, now)

	err := r.feeds.MarkFeedSuccess(ctx, f.ID, parsed.Title, res.ETag, res.LastModified, now.Unix())
	if err != nil {
		return false, err
	}

	updated := false
	var firstErr error

	for _, item := range parsed.Items {
		if cancel.Cancelled() {
			break
		}

		if item.Published < cutoff {
			continue
		}

		inserted, err := r.entries.InsertEntry(ctx, database.Entry{
			FeedID:    f.ID,
			GUID:      item.GUID,
			Title:     item.Title,
			Link:      item.Link,
			Published: item.Published,
			Content:   item.Content,
			CreatedAt: now.Unix(),
		})
		if err != nil {
			// A single bad entry must not sink the rest of the feed.
			slog.Warn("Failed to insert entry", "feed_id", f.ID, "guid", item.GUID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("insert entry %q: %w", item.GUID, err)
			}
			continue
		}
		if inserted {
			updated = true
		}
	}

	monthCount, err := r.feeds.RecomputeMonthCount(ctx, f.ID, cutoff)
	if err != nil {
		return updated, err
	}

	next := now.Add(r.policy.Interval(monthCount)).Unix()
	if err := r.feeds.SetNextFetch(ctx, f.ID, next); err != nil {
		return updated, err
	}

	return updated, firstErr
}
