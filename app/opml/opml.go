// Package opml handles importing and exporting OPML subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"time"
)

type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Subscription is a flattened feed reference from an OPML body.
type Subscription struct {
	URL   string
	Title string
}

// Parse extracts the unique feed subscriptions from an OPML document,
// walking nested outlines. Order is preserved; duplicate URLs are dropped.
func Parse(data []byte) ([]Subscription, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid OPML: %w", err)
	}

	var subs []Subscription
	seen := make(map[string]bool)

	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" && !seen[o.XMLURL] {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				subs = append(subs, Subscription{URL: o.XMLURL, Title: title})
				seen[o.XMLURL] = true
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)

	return subs, nil
}

// Build renders a flat OPML 2.0 document for the given subscriptions.
func Build(title string, subs []Subscription) ([]byte, error) {
	doc := Document{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	for _, sub := range subs {
		text := sub.Title
		if text == "" {
			text = sub.URL
		}
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:   text,
			Title:  text,
			Type:   "rss",
			XMLURL: sub.URL,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OPML: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
