package database

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repositories can run
// either standalone or inside a sweep transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type FeedRepository interface {
	GetFeed(ctx context.Context, id int64) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	GetFeedsByIDs(ctx context.Context, ids []int64) ([]Feed, error)
	GetDueFeeds(ctx context.Context, now int64) ([]Feed, error)
	GetAllFeeds(ctx context.Context) ([]Feed, error)
	ListFeeds(ctx context.Context, query string, limit int) ([]Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	CreateFeed(ctx context.Context, url, title string) (int64, error)
	UpdateFeedTitle(ctx context.Context, id int64, title string) error
	ChangeFeedURL(ctx context.Context, id int64, url, title string) error
	DeleteFeed(ctx context.Context, id int64) error

	MarkFeedUnmodified(ctx context.Context, id, now, next int64) error
	MarkFeedFailure(ctx context.Context, id, now int64, failCount int, next int64) error
	MarkFeedSuccess(ctx context.Context, id int64, title, etag, lastModified string, now int64) error
	SetNextFetch(ctx context.Context, id, next int64) error
	RecomputeMonthCount(ctx context.Context, id, cutoff int64) (int, error)
}

type EntryRepository interface {
	// InsertEntry is idempotent on (feed_id, guid); it reports whether a
	// new row was actually inserted.
	InsertEntry(ctx context.Context, entry Entry) (bool, error)

	ListEntries(ctx context.Context, filter string, cutoff int64, limit int) ([]EntryWithFeed, error)
	CountEntriesForFeed(ctx context.Context, feedID int64) (int, error)
	CountUnread(ctx context.Context, cutoff int64) (int, error)
	CountBookmarked(ctx context.Context) (int, error)

	MarkRead(ctx context.Context, id, now int64) error
	ToggleBookmark(ctx context.Context, id int64) (bool, error)

	DeleteEntriesForFeed(ctx context.Context, feedID int64) error
	PruneExpired(ctx context.Context, cutoff int64) (int64, error)
}
