// Package seed bootstraps an empty database from an optional YAML file of
// feed subscriptions.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/localrss/localrss/app/database"
)

type Feed struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

type file struct {
	Feeds []Feed `yaml:"feeds"`
}

// Load reads a seed file. A missing file is not an error; it simply yields
// no feeds.
func Load(path string) ([]Feed, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	var feeds []Feed
	for _, feed := range f.Feeds {
		if feed.URL == "" {
			continue
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}

// ImportIfEmpty inserts the seed feeds when the feeds table has no rows.
// Callers must hold the write lock.
func ImportIfEmpty(ctx context.Context, db *database.DB, path string) (int, error) {
	feeds, err := Load(path)
	if err != nil {
		return 0, err
	}
	if len(feeds) == 0 {
		return 0, nil
	}

	repo := database.NewFeedRepository(db)

	count, err := repo.GetFeedCount(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	imported := 0
	for _, f := range feeds {
		if _, err := repo.CreateFeed(ctx, f.URL, f.Title); err != nil {
			slog.Warn("Failed to import seed feed", "url", f.URL, "error", err)
			continue
		}
		imported++
	}

	return imported, nil
}
