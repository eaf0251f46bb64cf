// Package threatswatcher implements the trend-mining pipeline: RSS polling,
// entity extraction over fresh headlines, occurrence counting against the
// trendy-word store, reliability scoring and digest generation.
package threatswatcher

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/adapter/source"
	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

const (
	// PostWindow is how far back a post may be published and still count.
	PostWindow = 30 * 24 * time.Hour

	// WordTTL is how long a trendy word lives without being re-seen.
	WordTTL = 30 * 24 * time.Hour
)

type Config struct {
	PostsDepth            int
	WordsOccurrence       int
	BreakingNewsThreshold int
}

type Pipeline struct {
	cfg Config

	sources    ports.RSSSourceRepository
	banned     ports.BannedWordRepository
	trendy     ports.TrendyWordRepository
	summaries  ports.SummaryRepository
	fetcher    ports.FeedFetcher
	extractor  ports.EntityExtractor
	articles   ports.ArticleFetcher
	summarizer ports.Summarizer
	hub        *notification.Hub
	logger     *zap.SugaredLogger

	// redirectClient resolves pre-redirect hosts for reliability scoring.
	redirectClient *http.Client
}

func New(
	cfg Config,
	sources ports.RSSSourceRepository,
	banned ports.BannedWordRepository,
	trendy ports.TrendyWordRepository,
	summaries ports.SummaryRepository,
	fetcher ports.FeedFetcher,
	extractor ports.EntityExtractor,
	articles ports.ArticleFetcher,
	summarizer ports.Summarizer,
	hub *notification.Hub,
	logger *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		cfg:            cfg,
		sources:        sources,
		banned:         banned,
		trendy:         trendy,
		summaries:      summaries,
		fetcher:        fetcher,
		extractor:      extractor,
		articles:       articles,
		summarizer:     summarizer,
		hub:            hub,
		logger:         logger.Named("threats_watcher"),
		redirectClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run is one trend-mining tick.
func (p *Pipeline) Run(ctx context.Context) {
	feeds, err := p.sources.ListRSSSources(ctx)
	if err != nil {
		p.logger.Errorw("failed to list rss sources", "error", err)
		return
	}
	bannedWords, err := p.banned.ListBannedWords(ctx)
	if err != nil {
		p.logger.Errorw("failed to list banned words", "error", err)
		return
	}

	posts := p.fetchAll(ctx, feeds)
	counts, wordURLs := p.extractWords(posts, bannedWords)

	var newItems []notification.Item
	for word, count := range counts {
		if count < p.cfg.WordsOccurrence {
			continue
		}
		isNew := p.upsertWord(ctx, word, count, wordURLs[word])
		if isNew {
			newItems = append(newItems, notification.Item{Word: word})
		}
	}

	p.scoreWords(ctx, feeds)

	sort.Slice(newItems, func(i, j int) bool { return newItems[i].Word < newItems[j].Word })
	if len(newItems) > 0 {
		p.hub.Notify(ctx, notification.AppThreatsWatcher, "", newItems)
	}
}

// fetchAll pulls every feed concurrently, one goroutine per source.
func (p *Pipeline) fetchAll(ctx context.Context, feeds []domain.RSSSource) []domain.Post {
	var (
		mu    sync.Mutex
		posts []domain.Post
		wg    sync.WaitGroup
	)
	for _, feed := range feeds {
		wg.Add(1)
		go func(feed domain.RSSSource) {
			defer wg.Done()
			fetched, err := p.fetcher.Fetch(ctx, feed.URL, p.cfg.PostsDepth)
			if err != nil {
				p.logger.Warnw("feed fetch failed", "url", feed.URL, "error", err)
				return
			}
			mu.Lock()
			posts = append(posts, fetched...)
			mu.Unlock()
		}(feed)
	}
	wg.Wait()
	return posts
}

// extractWords runs entity extraction over each in-window headline and
// filters the resulting tokens.
func (p *Pipeline) extractWords(posts []domain.Post, bannedWords []string) (map[string]int, map[string]map[string]bool) {
	cutoff := time.Now().Add(-PostWindow)
	banned := make(map[string]bool, len(bannedWords))
	for _, b := range bannedWords {
		banned[strings.ToLower(b)] = true
	}

	counts := make(map[string]int)
	wordURLs := make(map[string]map[string]bool)

	for _, post := range posts {
		if post.PublishedAt.IsZero() || post.PublishedAt.Before(cutoff) {
			continue
		}
		entities := p.extractor.Extract(post.Title)
		for _, word := range entities.All() {
			if !KeepWord(word, banned) {
				continue
			}
			counts[word]++
			if wordURLs[word] == nil {
				wordURLs[word] = make(map[string]bool)
			}
			if post.URL != "" {
				wordURLs[word][post.URL] = true
			}
		}
	}
	return counts, wordURLs
}

// upsertWord creates or updates the trendy word and fires the digest
// triggers. Returns true when the word is new this tick.
func (p *Pipeline) upsertWord(ctx context.Context, word string, count int, urls map[string]bool) bool {
	existing, err := p.trendy.FindTrendyWord(ctx, word)
	if err != nil {
		p.logger.Errorw("trendy word lookup failed", "word", word, "error", err)
		return false
	}

	var record *domain.TrendyWord
	isNew := existing == nil
	if isNew {
		created, err := p.trendy.CreateTrendyWord(ctx,
			&domain.TrendyWord{Name: word, Occurrences: count}, urlList(urls))
		if err != nil {
			p.logger.Errorw("failed to create trendy word", "word", word, "error", err)
			return false
		}
		record = created
		p.logger.Infow("new trendy word", "word", word, "occurrences", count)
	} else {
		record = existing
		for u := range urls {
			linked, err := p.trendy.LinkPostURL(ctx, record.ID, u)
			if err != nil {
				p.logger.Errorw("failed to link post url", "word", word, "error", err)
				continue
			}
			if linked {
				record.Occurrences++
				if err := p.trendy.IncrementOccurrences(ctx, record.ID, 1); err != nil {
					p.logger.Errorw("failed to increment occurrences", "word", word, "error", err)
				}
			}
		}
	}

	p.maybeBreakingNews(ctx, record)
	p.maybeWordSummary(ctx, record)
	return isNew
}

// scoreWords recomputes the reliability score of every stored trendy word:
// the mean confidence percentage of the sources whose host matches a linked
// post URL's pre-redirect host.
func (p *Pipeline) scoreWords(ctx context.Context, feeds []domain.RSSSource) {
	sourceConfidence := make(map[string]float64, len(feeds))
	for _, feed := range feeds {
		if host := hostOf(feed.URL); host != "" {
			sourceConfidence[host] = feed.ConfidencePercent()
		}
	}

	words, err := p.trendy.ListTrendyWords(ctx, 0)
	if err != nil {
		p.logger.Errorw("failed to list trendy words for scoring", "error", err)
		return
	}

	for _, word := range words {
		links, err := p.trendy.ListPostURLs(ctx, word.ID)
		if err != nil {
			p.logger.Errorw("failed to list post urls", "word", word.Name, "error", err)
			continue
		}

		var sum float64
		var n int
		for _, link := range links {
			host := source.FinalHost(ctx, p.redirectClient, link.URL)
			if pct, ok := sourceConfidence[host]; ok {
				sum += pct
				n++
			}
		}

		score := 0.0
		if n > 0 {
			score = sum / float64(n)
		}
		if score != word.Score {
			if err := p.trendy.UpdateScore(ctx, word.ID, score); err != nil {
				p.logger.Errorw("failed to update score", "word", word.Name, "error", err)
			}
		}
	}
}

// Cleanup removes trendy words past the TTL; dangling post URLs go with
// them.
func (p *Pipeline) Cleanup(ctx context.Context) {
	deleted, err := p.trendy.DeleteTrendyWordsBefore(ctx, time.Now().Add(-WordTTL))
	if err != nil {
		p.logger.Errorw("trendy word cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Infow("trendy words expired", "count", deleted)
	}
}

func urlList(urls map[string]bool) []string {
	out := make([]string, 0, len(urls))
	for u := range urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
