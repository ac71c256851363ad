package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db DBTX
}

// NewFeedRepository creates a feed repository over a database handle or an
// open transaction.
func NewFeedRepository(db DBTX) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, url, COALESCE(title, ''), COALESCE(etag, ''), COALESCE(last_modified, ''),
       last_fetch, fail_count, next_fetch, month_count, last_ok, created_at`

func (r *feedRepository) scanFeed(row interface{ Scan(dest ...any) error }) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.ETag, &feed.LastModified,
		&feed.LastFetch, &feed.FailCount, &feed.NextFetch, &feed.MonthCount,
		&feed.LastOK, &feed.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (r *feedRepository) queryFeeds(ctx context.Context, query string, args ...any) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) GetFeedsByIDs(ctx context.Context, ids []int64) ([]Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return r.queryFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id IN (`+placeholders+`)`, args...)
}

func (r *feedRepository) GetDueFeeds(ctx context.Context, now int64) ([]Feed, error) {
	return r.queryFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE next_fetch <= ? ORDER BY next_fetch`, now)
}

func (r *feedRepository) GetAllFeeds(ctx context.Context) ([]Feed, error) {
	return r.queryFeeds(ctx, `SELECT `+feedColumns+` FROM feeds`)
}

func (r *feedRepository) ListFeeds(ctx context.Context, query string, limit int) ([]Feed, error) {
	if query != "" {
		like := "%" + query + "%"
		return r.queryFeeds(ctx,
			`SELECT `+feedColumns+` FROM feeds
			 WHERE url LIKE ? OR title LIKE ?
			 ORDER BY COALESCE(NULLIF(title, ''), url) LIMIT ?`, like, like, limit)
	}
	return r.queryFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds ORDER BY COALESCE(NULLIF(title, ''), url) LIMIT ?`, limit)
}

func (r *feedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// CreateFeed inserts a new feed. The UNIQUE constraint on url is the single
// duplicate guard; callers that tolerate duplicates look the URL up first.
func (r *feedRepository) CreateFeed(ctx context.Context, url, title string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (url, title, next_fetch, created_at) VALUES (?, ?, 0, ?)`,
		url, title, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create feed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get feed id: %w", err)
	}
	return id, nil
}

func (r *feedRepository) UpdateFeedTitle(ctx context.Context, id int64, title string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE feeds SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to update feed title: %w", err)
	}
	return nil
}

// ChangeFeedURL rewrites a feed's URL and clears the conditional-request
// cache and scheduling state so the new location is fetched fresh.
func (r *feedRepository) ChangeFeedURL(ctx context.Context, id int64, url, title string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET url = ?, title = ?, etag = NULL, last_modified = NULL, fail_count = 0, next_fetch = 0
		WHERE id = ?`, url, title, id)
	if err != nil {
		return fmt.Errorf("failed to change feed URL: %w", err)
	}
	return nil
}

func (r *feedRepository) DeleteFeed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

func (r *feedRepository) MarkFeedUnmodified(ctx context.Context, id, now, next int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET last_fetch = ?, fail_count = 0, next_fetch = ? WHERE id = ?`,
		now, next, id)
	if err != nil {
		return fmt.Errorf("failed to mark feed unmodified: %w", err)
	}
	return nil
}

func (r *feedRepository) MarkFeedFailure(ctx context.Context, id, now int64, failCount int, next int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET last_fetch = ?, fail_count = ?, next_fetch = ? WHERE id = ?`,
		now, failCount, next, id)
	if err != nil {
		return fmt.Errorf("failed to mark feed failure: %w", err)
	}
	return nil
}

// MarkFeedSuccess stores the fresh conditional-request cache and stamps the
// fetch times. A learned title never overwrites one already present.
func (r *feedRepository) MarkFeedSuccess(ctx context.Context, id int64, title, etag, lastModified string, now int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = CASE WHEN title IS NULL OR title = '' THEN ? ELSE title END,
		    etag = ?, last_modified = ?, last_fetch = ?, last_ok = ?, fail_count = 0
		WHERE id = ?`,
		title, etag, lastModified, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark feed success: %w", err)
	}
	return nil
}

func (r *feedRepository) SetNextFetch(ctx context.Context, id, next int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE feeds SET next_fetch = ? WHERE id = ?`, next, id)
	if err != nil {
		return fmt.Errorf("failed to set next fetch time: %w", err)
	}
	return nil
}

// RecomputeMonthCount recounts the feed's entries inside the retention
// window and persists the result.
func (r *feedRepository) RecomputeMonthCount(ctx context.Context, id, cutoff int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE feed_id = ? AND published >= ?`,
		id, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent entries: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `UPDATE feeds SET month_count = ? WHERE id = ?`, count, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update month count: %w", err)
	}

	return count, nil
}
