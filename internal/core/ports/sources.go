package ports

import (
	"context"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// FeedFetcher pulls the newest entries of one RSS/Atom feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, depth int) ([]domain.Post, error)
}

// Metasearcher runs an exact-match query against the metasearch endpoint
// and returns result URLs.
type Metasearcher interface {
	Search(ctx context.Context, keyword string) ([]string, error)
}

// Paste is one scraped paste listing entry.
type Paste struct {
	Key       string `json:"key"`
	ScrapeURL string `json:"scrape_url"`
}

// PasteScraper lists recent pastes and fetches raw bodies.
type PasteScraper interface {
	ListRecent(ctx context.Context, limit int) ([]Paste, error)
	FetchRaw(ctx context.Context, scrapeURL string) (string, error)
}

// Fuzzer invokes the permutation fuzzer for one seed domain.
type Fuzzer interface {
	Run(ctx context.Context, dom string) ([]domain.FuzzResult, error)
}

// CertUpdate is one certificate_update frame off the CT stream.
type CertUpdate struct {
	AllDomains []string
}

// CertStream is the long-lived certificate-transparency feed. Updates are
// pushed into the channel handed to Run until ctx is cancelled.
type CertStream interface {
	Run(ctx context.Context, updates chan<- CertUpdate) error
}

// ArticleFetcher extracts readable text from an article URL, for summary
// generation.
type ArticleFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Summarizer produces an abstractive summary for a keyword given source
// article bodies. Implementations fall back to a deterministic rendering
// when the generation backend is unavailable.
type Summarizer interface {
	Summarize(ctx context.Context, keyword string, articles []string) (string, error)
}
