package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/localrss/localrss/app/database"
	"github.com/localrss/localrss/app/feed"
	"github.com/localrss/localrss/app/fetch"
)

// Fetcher is the asynchronous fetch capability the orchestrator fans out
// over. Concurrency bounds live behind this boundary.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) fetch.Result
}

// Scope selects which feeds a sweep covers: an explicit id set, only feeds
// whose next_fetch has come due, or every feed.
type Scope struct {
	FeedIDs []int64
	OnlyDue bool
}

// Stats are a sweep's running totals. Updated counts feeds that gained at
// least one new entry; Errors counts feeds whose fetch or reconciliation
// failed.
type Stats struct {
	Total   int
	Checked int
	Updated int
	Errors  int
}

// Progress is invoked after each reconciled feed with the running totals
// and the URL just processed.
type Progress func(stats Stats, currentURL string)

// Orchestrator runs one sweep: a pool of dispatch workers fans fetches out
// over the bounded fetch capability and each result is reconciled as it
// completes, in completion order, on a single loop inside one store
// transaction. Callers must hold the write lock for the duration of Run.
type Orchestrator struct {
	db        *database.DB
	fetcher   Fetcher
	parser    *feed.Parser
	policy    Policy
	retention time.Duration
	workers   int
}

func NewOrchestrator(db *database.DB, fetcher Fetcher, parser *feed.Parser,
	policy Policy, retention time.Duration, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		db:        db,
		fetcher:   fetcher,
		parser:    parser,
		policy:    policy,
		retention: retention,
		workers:   workers,
	}
}

type feedResult struct {
	feed database.Feed
	res  fetch.Result
}

// Run executes one sweep over the scoped feeds. Cancellation is cooperative:
// once the flag is set no further fetches are dispatched, but results of
// already-dispatched fetches are still reconciled, so nothing half-fetched
// is lost. Per-feed failures are counted, not fatal; an unrecoverable store
// failure rolls the whole sweep transaction back and is returned.
func (o *Orchestrator) Run(ctx context.Context, scope Scope, cancel *CancelFlag,
	progress Progress) (Stats, error) {

	var stats Stats

	cutoff := time.Now().Add(-o.retention).Unix()

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin sweep transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	feedRepo := database.NewFeedRepository(tx)
	entryRepo := database.NewEntryRepository(tx)

	feeds, err := o.selectFeeds(ctx, feedRepo, scope)
	if err != nil {
		return stats, err
	}

	stats.Total = len(feeds)
	if progress != nil {
		progress(stats, "")
	}

	if len(feeds) == 0 {
		if err := tx.Commit(); err != nil {
			return stats, fmt.Errorf("failed to commit sweep transaction: %w", err)
		}
		committed = true
		return stats, nil
	}

	reconciler := NewReconciler(feedRepo, entryRepo, o.parser, o.policy)

	// Dispatch workers pull feeds one at a time and re-check the cancel
	// flag before each fetch, so a cancel observed mid-sweep stops further
	// dispatch while fetches already in flight still complete and get
	// reconciled. Workers drain the feed channel instead of exiting so the
	// producer never blocks on a dead channel.
	feedCh := make(chan database.Feed)
	results := make(chan feedResult)

	workers := min(o.workers, len(feeds))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range feedCh {
				if cancel.Cancelled() {
					continue
				}
				res := o.fetcher.Fetch(ctx, fetch.Request{
					URL:          f.URL,
					ETag:         f.ETag,
					LastModified: f.LastModified,
				})
				results <- feedResult{feed: f, res: res}
			}
		}()
	}

	go func() {
		for _, f := range feeds {
			feedCh <- f
		}
		close(feedCh)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single-threaded reconciliation in completion order. Store mutations
	// never run concurrently within a sweep.
	for r := range results {
		stats.Checked++

		updated, recErr := reconciler.Apply(ctx, r.feed, r.res, cutoff, cancel)
		if updated {
			stats.Updated++
		}
		if recErr != nil || r.res.Status == fetch.StatusHTTPError || r.res.Status == fetch.StatusException {
			stats.Errors++
		}
		if recErr != nil {
			slog.Warn("Feed reconciliation failed", "feed_id", r.feed.ID, "url", r.feed.URL, "error", recErr)
		}

		if progress != nil {
			progress(stats, r.feed.URL)
		}
	}

	pruned, err := entryRepo.PruneExpired(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("failed to prune expired entries: %w", err)
	}
	if pruned > 0 {
		slog.Debug("Pruned expired entries", "count", pruned)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit sweep transaction: %w", err)
	}
	committed = true

	return stats, nil
}

func (o *Orchestrator) selectFeeds(ctx context.Context, repo database.FeedRepository, scope Scope) ([]database.Feed, error) {
	switch {
	case len(scope.FeedIDs) > 0:
		return repo.GetFeedsByIDs(ctx, scope.FeedIDs)
	case scope.OnlyDue:
		return repo.GetDueFeeds(ctx, time.Now().Unix())
	default:
		return repo.GetAllFeeds(ctx)
	}
}
