package database

import (
	"context"
	"fmt"
)

var _ EntryRepository = (*entryRepository)(nil)

type entryRepository struct {
	db DBTX
}

// NewEntryRepository creates an entry repository over a database handle or
// an open transaction.
func NewEntryRepository(db DBTX) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) InsertEntry(ctx context.Context, entry Entry) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (feed_id, guid, title, link, published, content_html, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, guid) DO NOTHING`,
		entry.FeedID, entry.GUID, entry.Title, entry.Link, entry.Published,
		entry.Content, entry.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// Entry list filters for ListEntries.
const (
	FilterUnread     = "unread"
	FilterRead       = "read"
	FilterBookmarked = "bookmarked"
	FilterAll        = "all"
)

// ListEntries returns entries joined with their feed's display fields.
// Low-volume feeds sort first so rare items are not buried; within a feed,
// newest entries first. Bookmarked entries ignore the retention cutoff.
func (r *entryRepository) ListEntries(ctx context.Context, filter string, cutoff int64, limit int) ([]EntryWithFeed, error) {
	var where string
	var args []any

	switch filter {
	case FilterRead:
		where = "e.read_at IS NOT NULL AND e.published >= ?"
		args = []any{cutoff, limit}
	case FilterBookmarked:
		where = "e.bookmarked = 1"
		args = []any{limit}
	case FilterAll:
		where = "e.published >= ?"
		args = []any{cutoff, limit}
	default: // unread
		where = "e.read_at IS NULL AND e.published >= ?"
		args = []any{cutoff, limit}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.feed_id, e.guid, COALESCE(e.title, ''), COALESCE(e.link, ''),
		       e.published, COALESCE(e.content_html, ''), e.read_at, e.bookmarked, e.created_at,
		       COALESCE(f.title, ''), f.month_count
		FROM entries e
		JOIN feeds f ON f.id = e.feed_id
		WHERE `+where+`
		ORDER BY f.month_count ASC, e.published DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryWithFeed
	for rows.Next() {
		var e EntryWithFeed
		err := rows.Scan(
			&e.ID, &e.FeedID, &e.GUID, &e.Title, &e.Link,
			&e.Published, &e.Content, &e.ReadAt, &e.Bookmarked, &e.CreatedAt,
			&e.FeedTitle, &e.FeedMonthCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

func (r *entryRepository) CountEntriesForFeed(ctx context.Context, feedID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE feed_id = ?", feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (r *entryRepository) CountUnread(ctx context.Context, cutoff int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE read_at IS NULL AND published >= ?", cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread entries: %w", err)
	}
	return count, nil
}

func (r *entryRepository) CountBookmarked(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE bookmarked = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookmarked entries: %w", err)
	}
	return count, nil
}

func (r *entryRepository) MarkRead(ctx context.Context, id, now int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE entries SET read_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry read: %w", err)
	}
	return nil
}

// ToggleBookmark flips the bookmark flag and returns the new state.
func (r *entryRepository) ToggleBookmark(ctx context.Context, id int64) (bool, error) {
	var current bool
	err := r.db.QueryRowContext(ctx,
		`SELECT bookmarked FROM entries WHERE id = ?`, id).Scan(&current)
	if err != nil {
		return false, fmt.Errorf("failed to get bookmark state: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `UPDATE entries SET bookmarked = ? WHERE id = ?`, !current, id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle bookmark: %w", err)
	}
	return !current, nil
}

func (r *entryRepository) DeleteEntriesForFeed(ctx context.Context, feedID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE feed_id = ?`, feedID)
	if err != nil {
		return fmt.Errorf("failed to delete feed entries: %w", err)
	}
	return nil
}

// PruneExpired removes entries older than the cutoff, keeping bookmarks.
func (r *entryRepository) PruneExpired(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE published < ? AND bookmarked = 0`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune entries: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get pruned count: %w", err)
	}
	return pruned, nil
}
