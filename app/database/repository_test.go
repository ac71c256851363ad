package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func TestCreateAndGetFeed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	id, err := repo.CreateFeed(ctx, "https://example.com/feed.xml", "Example")
	if err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	feed, err := repo.GetFeed(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get feed: %v", err)
	}
	if feed == nil {
		t.Fatal("Expected feed, got nil")
	}
	if feed.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got '%s'", feed.URL)
	}
	if feed.Title != "Example" {
		t.Errorf("Expected title 'Example', got '%s'", feed.Title)
	}
	if feed.NextFetch != 0 {
		t.Errorf("Expected new feed to be immediately due, got next_fetch %d", feed.NextFetch)
	}

	missing, err := repo.GetFeed(ctx, 9999)
	if err != nil {
		t.Fatalf("Unexpected error for missing feed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for missing feed")
	}
}

func TestCreateFeedDuplicateURL(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	if _, err := repo.CreateFeed(ctx, "https://example.com/feed.xml", ""); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	if _, err := repo.CreateFeed(ctx, "https://example.com/feed.xml", ""); err == nil {
		t.Error("Expected unique constraint violation for duplicate URL")
	}
}

func TestGetDueFeeds(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	dueID, _ := repo.CreateFeed(ctx, "https://a.example.com/feed", "")
	laterID, _ := repo.CreateFeed(ctx, "https://b.example.com/feed", "")

	now := time.Now().Unix()
	if err := repo.SetNextFetch(ctx, laterID, now+3600); err != nil {
		t.Fatalf("Failed to set next fetch: %v", err)
	}

	due, err := repo.GetDueFeeds(ctx, now)
	if err != nil {
		t.Fatalf("Failed to get due feeds: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("Expected 1 due feed, got %d", len(due))
	}
	if due[0].ID != dueID {
		t.Errorf("Expected feed %d to be due, got %d", dueID, due[0].ID)
	}
}

func TestMarkFeedSuccessPreservesTitle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	now := time.Now().Unix()

	// Empty title: the learned one lands.
	learnedID, _ := repo.CreateFeed(ctx, "https://a.example.com/feed", "")
	if err := repo.MarkFeedSuccess(ctx, learnedID, "Learned Title", `"etag"`, "lm", now); err != nil {
		t.Fatalf("Failed to mark feed success: %v", err)
	}
	feed, _ := repo.GetFeed(ctx, learnedID)
	if feed.Title != "Learned Title" {
		t.Errorf("Expected learned title to fill empty title, got '%s'", feed.Title)
	}
	if feed.ETag != `"etag"` {
		t.Errorf("Expected etag to be stored, got '%s'", feed.ETag)
	}
	if feed.LastOK != now {
		t.Errorf("Expected last_ok %d, got %d", now, feed.LastOK)
	}

	// Existing title: the learned one must not overwrite it.
	keptID, _ := repo.CreateFeed(ctx, "https://b.example.com/feed", "My Name")
	if err := repo.MarkFeedSuccess(ctx, keptID, "Feed Says Otherwise", "", "", now); err != nil {
		t.Fatalf("Failed to mark feed success: %v", err)
	}
	feed, _ = repo.GetFeed(ctx, keptID)
	if feed.Title != "My Name" {
		t.Errorf("Expected user title to survive, got '%s'", feed.Title)
	}
}

func TestMarkFeedFailureAndRecovery(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	id, _ := repo.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()

	if err := repo.MarkFeedFailure(ctx, id, now, 3, now+480); err != nil {
		t.Fatalf("Failed to mark feed failure: %v", err)
	}
	feed, _ := repo.GetFeed(ctx, id)
	if feed.FailCount != 3 {
		t.Errorf("Expected fail count 3, got %d", feed.FailCount)
	}
	if feed.NextFetch != now+480 {
		t.Errorf("Expected next_fetch %d, got %d", now+480, feed.NextFetch)
	}

	// Any success resets the streak.
	if err := repo.MarkFeedUnmodified(ctx, id, now, now+1200); err != nil {
		t.Fatalf("Failed to mark feed unmodified: %v", err)
	}
	feed, _ = repo.GetFeed(ctx, id)
	if feed.FailCount != 0 {
		t.Errorf("Expected fail count reset to 0, got %d", feed.FailCount)
	}
}

func TestChangeFeedURLClearsCache(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	id, _ := repo.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()
	repo.MarkFeedSuccess(ctx, id, "Title", `"etag"`, "lm", now)
	repo.SetNextFetch(ctx, id, now+7200)

	if err := repo.ChangeFeedURL(ctx, id, "https://moved.example.com/feed", "Title"); err != nil {
		t.Fatalf("Failed to change feed URL: %v", err)
	}

	feed, _ := repo.GetFeed(ctx, id)
	if feed.URL != "https://moved.example.com/feed" {
		t.Errorf("Expected new URL, got '%s'", feed.URL)
	}
	if feed.ETag != "" || feed.LastModified != "" {
		t.Errorf("Expected conditional cache cleared, got etag '%s' last_modified '%s'", feed.ETag, feed.LastModified)
	}
	if feed.NextFetch != 0 {
		t.Errorf("Expected feed to be immediately due after URL change, got %d", feed.NextFetch)
	}
}

func TestInsertEntryIdempotent(t *testing.T) {
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	entries := NewEntryRepository(db)
	ctx := context.Background()

	feedID, _ := feeds.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()

	entry := Entry{
		FeedID:    feedID,
		GUID:      "item-1",
		Title:     "First",
		Link:      "https://a.example.com/1",
		Published: now,
		Content:   "<p>hi</p>",
		CreatedAt: now,
	}

	inserted, err := entries.InsertEntry(ctx, entry)
	if err != nil {
		t.Fatalf("Failed to insert entry: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to report true")
	}

	inserted, err = entries.InsertEntry(ctx, entry)
	if err != nil {
		t.Fatalf("Failed on duplicate insert: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate insert to report false")
	}

	count, _ := entries.CountEntriesForFeed(ctx, feedID)
	if count != 1 {
		t.Errorf("Expected 1 entry, got %d", count)
	}

	// The same guid under a different feed is a distinct entry.
	otherID, _ := feeds.CreateFeed(ctx, "https://b.example.com/feed", "")
	entry.FeedID = otherID
	inserted, err = entries.InsertEntry(ctx, entry)
	if err != nil {
		t.Fatalf("Failed to insert entry for second feed: %v", err)
	}
	if !inserted {
		t.Error("Expected same guid under another feed to insert")
	}
}

func TestListEntriesFiltersAndOrder(t *testing.T) {
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	entries := NewEntryRepository(db)
	ctx := context.Background()

	quietID, _ := feeds.CreateFeed(ctx, "https://quiet.example.com/feed", "Quiet")
	busyID, _ := feeds.CreateFeed(ctx, "https://busy.example.com/feed", "Busy")

	now := time.Now().Unix()
	cutoff := now - 30*24*3600

	entries.InsertEntry(ctx, Entry{FeedID: quietID, GUID: "q1", Published: now - 100, CreatedAt: now})
	entries.InsertEntry(ctx, Entry{FeedID: busyID, GUID: "b1", Published: now - 10, CreatedAt: now})
	entries.InsertEntry(ctx, Entry{FeedID: busyID, GUID: "b2", Published: now - 20, CreatedAt: now})

	// Make the busy feed's month count higher so the quiet feed sorts first.
	feeds.RecomputeMonthCount(ctx, quietID, cutoff)
	feeds.RecomputeMonthCount(ctx, busyID, cutoff)
	db.Exec("UPDATE feeds SET month_count = 50 WHERE id = ?", busyID)

	list, err := entries.ListEntries(ctx, FilterUnread, cutoff, 100)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 unread entries, got %d", len(list))
	}
	if list[0].GUID != "q1" {
		t.Errorf("Expected quiet feed entry first, got '%s'", list[0].GUID)
	}
	if list[1].GUID != "b1" || list[2].GUID != "b2" {
		t.Errorf("Expected busy feed entries newest-first, got '%s' then '%s'", list[1].GUID, list[2].GUID)
	}
	if list[0].FeedTitle != "Quiet" {
		t.Errorf("Expected feed title 'Quiet', got '%s'", list[0].FeedTitle)
	}

	// Marking read moves an entry between the unread and read filters.
	if err := entries.MarkRead(ctx, list[0].ID, now); err != nil {
		t.Fatalf("Failed to mark read: %v", err)
	}
	unread, _ := entries.ListEntries(ctx, FilterUnread, cutoff, 100)
	if len(unread) != 2 {
		t.Errorf("Expected 2 unread entries after mark read, got %d", len(unread))
	}
	read, _ := entries.ListEntries(ctx, FilterRead, cutoff, 100)
	if len(read) != 1 {
		t.Errorf("Expected 1 read entry, got %d", len(read))
	}
}

func TestToggleBookmark(t *testing.T) {
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	entries := NewEntryRepository(db)
	ctx := context.Background()

	feedID, _ := feeds.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()
	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "e1", Published: now, CreatedAt: now})

	list, _ := entries.ListEntries(ctx, FilterAll, 0, 10)
	id := list[0].ID

	on, err := entries.ToggleBookmark(ctx, id)
	if err != nil {
		t.Fatalf("Failed to toggle bookmark: %v", err)
	}
	if !on {
		t.Error("Expected bookmark on after first toggle")
	}

	count, _ := entries.CountBookmarked(ctx)
	if count != 1 {
		t.Errorf("Expected 1 bookmarked entry, got %d", count)
	}

	off, err := entries.ToggleBookmark(ctx, id)
	if err != nil {
		t.Fatalf("Failed to toggle bookmark: %v", err)
	}
	if off {
		t.Error("Expected bookmark off after second toggle")
	}
}

func TestPruneExpiredKeepsBookmarks(t *testing.T) {
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	entries := NewEntryRepository(db)
	ctx := context.Background()

	feedID, _ := feeds.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()
	cutoff := now - 30*24*3600

	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "old", Published: cutoff - 100, CreatedAt: now})
	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "old-kept", Published: cutoff - 100, CreatedAt: now})
	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "fresh", Published: now, CreatedAt: now})

	list, _ := entries.ListEntries(ctx, FilterAll, 0, 10)
	for _, e := range list {
		if e.GUID == "old-kept" {
			entries.ToggleBookmark(ctx, e.ID)
		}
	}

	pruned, err := entries.PruneExpired(ctx, cutoff)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", pruned)
	}

	count, _ := entries.CountEntriesForFeed(ctx, feedID)
	if count != 2 {
		t.Errorf("Expected bookmarked and fresh entries to survive, got %d", count)
	}
}

func TestRecomputeMonthCount(t *testing.T) {
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	entries := NewEntryRepository(db)
	ctx := context.Background()

	feedID, _ := feeds.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()
	cutoff := now - 30*24*3600

	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "in-1", Published: now - 100, CreatedAt: now})
	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "in-2", Published: now - 200, CreatedAt: now})
	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "out", Published: cutoff - 100, CreatedAt: now})

	count, err := feeds.RecomputeMonthCount(ctx, feedID, cutoff)
	if err != nil {
		t.Fatalf("Failed to recompute month count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected month count 2, got %d", count)
	}

	feed, _ := feeds.GetFeed(ctx, feedID)
	if feed.MonthCount != 2 {
		t.Errorf("Expected persisted month count 2, got %d", feed.MonthCount)
	}
}

func TestDeleteFeedAndEntries(t *testing.T) {
	db := setupTestDB(t)
	feeds := NewFeedRepository(db)
	entries := NewEntryRepository(db)
	ctx := context.Background()

	feedID, _ := feeds.CreateFeed(ctx, "https://a.example.com/feed", "")
	now := time.Now().Unix()
	entries.InsertEntry(ctx, Entry{FeedID: feedID, GUID: "e1", Published: now, CreatedAt: now})

	if err := entries.DeleteEntriesForFeed(ctx, feedID); err != nil {
		t.Fatalf("Failed to delete entries: %v", err)
	}
	if err := feeds.DeleteFeed(ctx, feedID); err != nil {
		t.Fatalf("Failed to delete feed: %v", err)
	}

	feed, _ := feeds.GetFeed(ctx, feedID)
	if feed != nil {
		t.Error("Expected feed to be gone")
	}
	count, _ := entries.CountEntriesForFeed(ctx, feedID)
	if count != 0 {
		t.Errorf("Expected 0 entries after delete, got %d", count)
	}
}

func TestListFeedsSearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	ctx := context.Background()

	repo.CreateFeed(ctx, "https://golang.example.com/feed", "Go Blog")
	repo.CreateFeed(ctx, "https://news.example.com/feed", "News")

	found, err := repo.ListFeeds(ctx, "golang", 10)
	if err != nil {
		t.Fatalf("Failed to list feeds: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Expected 1 match for 'golang', got %d", len(found))
	}
	if found[0].Title != "Go Blog" {
		t.Errorf("Expected 'Go Blog', got '%s'", found[0].Title)
	}

	all, _ := repo.ListFeeds(ctx, "", 10)
	if len(all) != 2 {
		t.Errorf("Expected 2 feeds, got %d", len(all))
	}
}
