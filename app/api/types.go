package api

// Request/response shapes for the JSON API.

type markReadRequest struct {
	ID int64 `json:"id" binding:"required"`
}

type toggleBookmarkRequest struct {
	ID int64 `json:"id" binding:"required"`
}

type createFeedRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

type updateFeedRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

type startUpdateRequest struct {
	Full *bool `json:"full"`
}

type cancelUpdateRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

type schedulerRequest struct {
	Enabled bool `json:"enabled"`
}

type feedResponse struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type itemResponse struct {
	ID         int64  `json:"id"`
	FeedTitle  string `json:"feed_title"`
	MonthCount int    `json:"month_count"`
	Title      string `json:"title"`
	Link       string `json:"link"`
	Published  int64  `json:"published"`
	Content    string `json:"content_html"`
	Bookmarked bool   `json:"bookmarked"`
	ReadAt     *int64 `json:"read_at"`
}

type statsResponse struct {
	Feeds            int  `json:"feeds"`
	Unread           int  `json:"unread"`
	Bookmarked       int  `json:"bookmarked"`
	RetentionDays    int  `json:"retention_days"`
	SchedulerEnabled bool `json:"scheduler_enabled"`
}
