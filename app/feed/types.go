package feed

// Parsed is the outcome of parsing one feed body.
type Parsed struct {
	Title string
	Items []Item
}

// Item is a normalized feed entry. Published is epoch seconds, already run
// through the date-safety ladder, so it is always usable.
type Item struct {
	GUID      string
	Title     string
	Link      string
	Published int64
	Content   string
}
