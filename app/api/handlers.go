package api

import (
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localrss/localrss/app/database"
	"github.com/localrss/localrss/app/jobs"
	"github.com/localrss/localrss/app/opml"
	"github.com/localrss/localrss/app/scheduler"
	"github.com/localrss/localrss/app/sweep"
)

var httpURLPattern = regexp.MustCompile(`(?i)^https?://`)

type Handler struct {
	db            *database.DB
	feedRepo      database.FeedRepository
	entryRepo     database.EntryRepository
	jobManager    *jobs.Manager
	scheduler     *scheduler.Scheduler
	orchestrator  *sweep.Orchestrator
	writeLock     *database.WriteLock
	retentionDays int
	version       string
}

func NewHandler(db *database.DB, jobManager *jobs.Manager, sched *scheduler.Scheduler,
	orchestrator *sweep.Orchestrator, writeLock *database.WriteLock,
	retentionDays int, version string) *Handler {
	return &Handler{
		db:            db,
		feedRepo:      database.NewFeedRepository(db),
		entryRepo:     database.NewEntryRepository(db),
		jobManager:    jobManager,
		scheduler:     sched,
		orchestrator:  orchestrator,
		writeLock:     writeLock,
		retentionDays: retentionDays,
		version:       version,
	}
}

func (h *Handler) retentionCutoff() int64 {
	return time.Now().AddDate(0, 0, -h.retentionDays).Unix()
}

// refuseWhileSweeping rejects feed mutations while a sweep job is active so
// a feed cannot be edited or deleted mid-fetch.
func (h *Handler) refuseWhileSweeping(c *gin.Context) bool {
	if h.jobManager.IsActive() {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "Cannot modify feeds while an update is running."})
		return true
	}
	return false
}

// refreshFeed runs a synchronous single-feed sweep, bypassing due-time
// filtering but still honoring the write lock.
func (h *Handler) refreshFeed(c *gin.Context, feedID int64) error {
	h.writeLock.Lock()
	defer h.writeLock.Unlock()

	_, err := h.orchestrator.Run(c.Request.Context(), sweep.Scope{FeedIDs: []int64{feedID}}, nil, nil)
	return err
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	feeds, err := h.feedRepo.GetFeedCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "feed_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	cutoff := h.retentionCutoff()
	unread, err := h.entryRepo.CountUnread(ctx, cutoff)
	if err != nil {
		slog.Error("Database error", "operation", "count_unread", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	bookmarked, err := h.entryRepo.CountBookmarked(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "count_bookmarked", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, statsResponse{
		Feeds:            feeds,
		Unread:           unread,
		Bookmarked:       bookmarked,
		RetentionDays:    h.retentionDays,
		SchedulerEnabled: h.scheduler.Enabled(),
	})
}

func (h *Handler) ListItems(c *gin.Context) {
	filter := c.DefaultQuery("filter", database.FilterUnread)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "1600"))
	if err != nil || limit < 1 {
		limit = 1600
	}

	entries, err := h.entryRepo.ListEntries(c.Request.Context(), filter, h.retentionCutoff(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	items := make([]itemResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, itemResponse{
			ID:         e.ID,
			FeedTitle:  e.FeedTitle,
			MonthCount: e.FeedMonthCount,
			Title:      e.Title,
			Link:       e.Link,
			Published:  e.Published,
			Content:    e.Content,
			Bookmarked: e.Bookmarked,
			ReadAt:     e.ReadAt,
		})
	}

	c.JSON(http.StatusOK, items)
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "id required"})
		return
	}

	h.writeLock.Lock()
	err := h.entryRepo.MarkRead(c.Request.Context(), req.ID, time.Now().Unix())
	h.writeLock.Unlock()

	if err != nil {
		slog.Error("Database error", "operation", "mark_read", "entry_id", req.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) ToggleBookmark(c *gin.Context) {
	var req toggleBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "id required"})
		return
	}

	h.writeLock.Lock()
	bookmarked, err := h.entryRepo.ToggleBookmark(c.Request.Context(), req.ID)
	h.writeLock.Unlock()

	if err != nil {
		slog.Error("Database error", "operation", "toggle_bookmark", "entry_id", req.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "bookmarked": bookmarked})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	query := c.Query("q")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if err != nil {
		limit = 200
	}
	limit = max(1, min(limit, 1000))

	feeds, err := h.feedRepo.ListFeeds(c.Request.Context(), query, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, feedResponse{ID: f.ID, URL: f.URL, Title: f.Title})
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "feeds": out})
}

func (h *Handler) GetFeed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid feed id"})
		return
	}

	feed, err := h.feedRepo.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Unknown feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "feed": feedResponse{ID: feed.ID, URL: feed.URL, Title: feed.Title}})
}

func (h *Handler) CreateFeed(c *gin.Context) {
	if h.refuseWhileSweeping(c) {
		return
	}

	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "url required"})
		return
	}
	if !httpURLPattern.MatchString(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "URL must start with http:// or https://"})
		return
	}

	ctx := c.Request.Context()

	existing, err := h.feedRepo.GetFeedByURL(ctx, req.URL)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed_by_url", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if existing != nil {
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"existing": true,
			"feed":     feedResponse{ID: existing.ID, URL: existing.URL, Title: existing.Title},
		})
		return
	}

	h.writeLock.Lock()
	id, err := h.feedRepo.CreateFeed(ctx, req.URL, req.Title)
	h.writeLock.Unlock()

	if err != nil {
		// The UNIQUE constraint on url is the duplicate guard; losing a
		// race to another writer surfaces here.
		slog.Error("Failed to create feed", "url", req.URL, "error", err)
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "A feed with that URL already exists."})
		return
	}

	// Fetch immediately so the new feed has entries and a learned title.
	if err := h.refreshFeed(c, id); err != nil {
		slog.Warn("Initial feed refresh failed", "feed_id", id, "error", err)
	}

	feed, err := h.feedRepo.GetFeed(ctx, id)
	if err != nil || feed == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "existing": false, "feed": feedResponse{ID: id, URL: req.URL, Title: req.Title}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "existing": false, "feed": feedResponse{ID: feed.ID, URL: feed.URL, Title: feed.Title}})
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	if h.refuseWhileSweeping(c) {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid feed id"})
		return
	}

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "url required"})
		return
	}
	if !httpURLPattern.MatchString(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "URL must start with http:// or https://"})
		return
	}

	ctx := c.Request.Context()

	feed, err := h.feedRepo.GetFeed(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Unknown feed"})
		return
	}

	h.writeLock.Lock()
	if req.URL != feed.URL {
		err = h.feedRepo.ChangeFeedURL(ctx, id, req.URL, req.Title)
	} else {
		err = h.feedRepo.UpdateFeedTitle(ctx, id, req.Title)
	}
	h.writeLock.Unlock()

	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "A feed with that URL already exists."})
		return
	}

	if err := h.refreshFeed(c, id); err != nil {
		slog.Warn("Feed refresh after update failed", "feed_id", id, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "feed": feedResponse{ID: id, URL: req.URL, Title: req.Title}})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	if h.refuseWhileSweeping(c) {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid feed id"})
		return
	}

	ctx := c.Request.Context()

	feed, err := h.feedRepo.GetFeed(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Unknown feed"})
		return
	}

	h.writeLock.Lock()
	defer h.writeLock.Unlock()

	// Entries first: referential integrity is manual.
	if err := h.entryRepo.DeleteEntriesForFeed(ctx, id); err != nil {
		slog.Error("Failed to delete feed entries", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if err := h.feedRepo.DeleteFeed(ctx, id); err != nil {
		slog.Error("Failed to delete feed", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid feed id"})
		return
	}

	feed, err := h.feedRepo.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Unknown feed"})
		return
	}

	if err := h.refreshFeed(c, id); err != nil {
		slog.Error("Feed refresh failed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) StartUpdate(c *gin.Context) {
	var req startUpdateRequest
	_ = c.ShouldBindJSON(&req)

	full := true
	if req.Full != nil {
		full = *req.Full
	}

	jobID := h.jobManager.StartSweep(full)
	c.JSON(http.StatusOK, gin.H{"ok": true, "job_id": jobID})
}

func (h *Handler) UpdateProgress(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "job_id required"})
		return
	}

	snapshot, ok := h.jobManager.Get(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown job_id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "job": snapshot})
}

func (h *Handler) CancelUpdate(c *gin.Context) {
	var req cancelUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "job_id required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": h.jobManager.Cancel(req.JobID)})
}

func (h *Handler) SetScheduler(c *gin.Context) {
	var req schedulerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "enabled required"})
		return
	}

	h.scheduler.SetEnabled(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"ok": true, "scheduler_enabled": req.Enabled})
}

func (h *Handler) ExportOPML(c *gin.Context) {
	feeds, err := h.feedRepo.ListFeeds(c.Request.Context(), "", 10000)
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	subs := make([]opml.Subscription, 0, len(feeds))
	for _, f := range feeds {
		subs = append(subs, opml.Subscription{URL: f.URL, Title: f.Title})
	}

	data, err := opml.Build("LocalRSS Feeds", subs)
	if err != nil {
		slog.Error("Failed to build OPML", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=feeds.opml")
	c.Data(http.StatusOK, "text/xml", data)
}

func (h *Handler) ImportOPML(c *gin.Context) {
	if h.refuseWhileSweeping(c) {
		return
	}

	fileHeader, err := c.FormFile("opml")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Missing file field 'opml'."})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	subs, err := opml.Parse(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	mode := c.DefaultPostForm("mode", "merge")
	if mode != "merge" && mode != "replace" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Unknown mode: " + mode})
		return
	}

	imported, skipped, err := h.importSubscriptions(c, subs, mode == "replace")
	if err != nil {
		slog.Error("OPML import failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "mode": mode, "imported": imported, "skipped": skipped})
}

// importSubscriptions runs the bulk import inside one transaction under the
// write lock. Replace mode clears the current subscriptions first.
func (h *Handler) importSubscriptions(c *gin.Context, subs []opml.Subscription, replace bool) (int, int, error) {
	ctx := c.Request.Context()

	h.writeLock.Lock()
	defer h.writeLock.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	feedRepo := database.NewFeedRepository(tx)

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
			return 0, 0, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM feeds"); err != nil {
			return 0, 0, err
		}
	}

	imported := 0
	skipped := 0
	for _, sub := range subs {
		existing, err := feedRepo.GetFeedByURL(ctx, sub.URL)
		if err != nil {
			return 0, 0, err
		}
		if existing != nil {
			skipped++
			continue
		}
		if _, err := feedRepo.CreateFeed(ctx, sub.URL, sub.Title); err != nil {
			return 0, 0, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}

	return imported, skipped, nil
}
