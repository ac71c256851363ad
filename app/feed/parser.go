package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses one feed body. It never fails: malformed input yields an empty
// item list so a single broken feed degrades instead of aborting a sweep.
func (p *Parser) Run(data []byte, now time.Time) *Parsed {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Feed body did not parse", "error", err)
		return &Parsed{}
	}

	result := &Parsed{
		Title: strings.TrimSpace(parsed.Title),
		Items: make([]Item, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		result.Items = append(result.Items, p.normalizeItem(item, now))
	}

	return result
}

func (p *Parser) normalizeItem(item *gofeed.Item, now time.Time) Item {
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}

	return Item{
		GUID:      StableGUID(item),
		Title:     strings.TrimSpace(item.Title),
		Link:      item.Link,
		Published: SafeEpoch(published, now),
		Content:   cmp.Or(item.Content, item.Description),
	}
}

// StableGUID returns the feed-supplied identifier, or a deterministic hash
// of (link, title, published). The raw published string is hashed, not the
// parsed time, so repeated fetches of the same item derive the same guid.
func StableGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}

	published := cmp.Or(item.Published, item.Updated)
	raw := item.Link + "\n" + item.Title + "\n" + published

	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}
