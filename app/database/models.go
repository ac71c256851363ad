package database

// Feed represents a subscribed feed. Timestamps are epoch seconds; zero
// means never. NextFetch gates eligibility for the next sweep.
type Feed struct {
	ID           int64
	URL          string
	Title        string // empty until learned from the feed body or set by the user
	ETag         string
	LastModified string
	LastFetch    int64
	FailCount    int // consecutive failure streak, reset on any success
	NextFetch    int64
	MonthCount   int // entries newer than the retention cutoff
	LastOK       int64
	CreatedAt    int64
}

// Entry is a single item belonging to one feed. Identity is (feed_id, guid).
type Entry struct {
	ID         int64
	FeedID     int64
	GUID       string
	Title      string
	Link       string
	Published  int64
	Content    string
	ReadAt     *int64 // nil = unread
	Bookmarked bool
	CreatedAt  int64
}

// EntryWithFeed carries the owning feed's display fields alongside an entry.
type EntryWithFeed struct {
	Entry
	FeedTitle      string
	FeedMonthCount int
}
