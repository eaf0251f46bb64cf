// Package source holds the input-side adapters: RSS feeds, the metasearch
// endpoint, the paste scraper, the certificate-transparency stream and the
// permutation fuzzer.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// RSSFetcher parses feeds with a 10 s timeout per source.
type RSSFetcher struct {
	parser *gofeed.Parser
	client *http.Client
}

func NewRSSFetcher() *RSSFetcher {
	client := &http.Client{Timeout: 10 * time.Second}
	parser := gofeed.NewParser()
	parser.Client = client
	return &RSSFetcher{parser: parser, client: client}
}

// Fetch returns the first depth entries of the feed. Entries without a
// parseable published date keep a zero timestamp and are filtered out of the
// recency window downstream.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string, depth int) ([]domain.Post, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	items := feed.Items
	if len(items) > depth {
		items = items[:depth]
	}

	posts := make([]domain.Post, 0, len(items))
	for _, item := range items {
		post := domain.Post{
			Title: item.Title,
			URL:   item.Link,
		}
		if item.PublishedParsed != nil {
			post.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			post.PublishedAt = *item.UpdatedParsed
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// FinalHost follows the redirect chain of rawURL and returns the host of
// the final URL, or the original host when the request fails or never
// redirects. Used for matching post URLs back to their feed source.
func FinalHost(ctx context.Context, client *http.Client, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	original := parsed.Hostname()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return original
	}
	resp, err := client.Do(req)
	if err != nil {
		return original
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.Hostname()
	}
	return original
}
