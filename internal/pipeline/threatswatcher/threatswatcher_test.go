package threatswatcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

const englishBody = "The ransomware group resumed operations this week, targeting healthcare " +
	"providers across Europe with phishing emails and malicious attachments. Researchers " +
	"observed new infrastructure registered days before the first intrusions."

type fakeSources struct {
	feeds []domain.RSSSource
}

func (f *fakeSources) ListRSSSources(ctx context.Context) ([]domain.RSSSource, error) {
	return f.feeds, nil
}

type fakeBanned struct {
	words []string
}

func (f *fakeBanned) ListBannedWords(ctx context.Context) ([]string, error) {
	return f.words, nil
}

type fakeTrendy struct {
	words  map[string]*domain.TrendyWord
	links  map[int64]map[string]bool
	listed []domain.TrendyWord

	nextID      int64
	created     []string
	increments  map[int64]int
	scores      map[int64]float64
	listLimits  []int
	deleteAfter time.Time
}

func newFakeTrendy() *fakeTrendy {
	return &fakeTrendy{
		words:      make(map[string]*domain.TrendyWord),
		links:      make(map[int64]map[string]bool),
		increments: make(map[int64]int),
		scores:     make(map[int64]float64),
	}
}

func (f *fakeTrendy) seed(word *domain.TrendyWord, urls ...string) {
	f.words[word.Name] = word
	set := make(map[string]bool)
	for _, u := range urls {
		set[u] = true
	}
	f.links[word.ID] = set
}

func (f *fakeTrendy) FindTrendyWord(ctx context.Context, name string) (*domain.TrendyWord, error) {
	if w, ok := f.words[name]; ok {
		return w, nil
	}
	return nil, nil
}

func (f *fakeTrendy) CreateTrendyWord(ctx context.Context, word *domain.TrendyWord, urls []string) (*domain.TrendyWord, error) {
	f.nextID++
	word.ID = f.nextID
	word.FirstSeen = time.Now()
	f.words[word.Name] = word
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	f.links[word.ID] = set
	f.created = append(f.created, word.Name)
	return word, nil
}

func (f *fakeTrendy) LinkPostURL(ctx context.Context, wordID int64, url string) (bool, error) {
	if f.links[wordID] == nil {
		f.links[wordID] = make(map[string]bool)
	}
	if f.links[wordID][url] {
		return false, nil
	}
	f.links[wordID][url] = true
	return true, nil
}

func (f *fakeTrendy) IncrementOccurrences(ctx context.Context, wordID int64, delta int) error {
	f.increments[wordID] += delta
	return nil
}

func (f *fakeTrendy) UpdateScore(ctx context.Context, wordID int64, score float64) error {
	f.scores[wordID] = score
	return nil
}

func (f *fakeTrendy) ListPostURLs(ctx context.Context, wordID int64) ([]domain.PostURL, error) {
	urls := make([]string, 0, len(f.links[wordID]))
	for u := range f.links[wordID] {
		urls = append(urls, u)
	}
	out := make([]domain.PostURL, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.PostURL{URL: u})
	}
	return out, nil
}

// ListTrendyWords mirrors the store contract: a positive limit truncates,
// zero or less returns everything.
func (f *fakeTrendy) ListTrendyWords(ctx context.Context, limit int) ([]domain.TrendyWord, error) {
	f.listLimits = append(f.listLimits, limit)
	if limit > 0 && limit < len(f.listed) {
		return f.listed[:limit], nil
	}
	return f.listed, nil
}

func (f *fakeTrendy) DeleteTrendyWordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteAfter = cutoff
	return 2, nil
}

type fakeSummaries struct {
	exists  map[string]bool
	created []domain.Summary
}

func summaryKey(kind domain.SummaryKind, keyword string) string {
	return string(kind) + "|" + keyword
}

func (f *fakeSummaries) SummaryExistsSince(ctx context.Context, kind domain.SummaryKind, keyword string, since time.Time) (bool, error) {
	return f.exists[summaryKey(kind, keyword)], nil
}

func (f *fakeSummaries) CreateSummary(ctx context.Context, s *domain.Summary) error {
	f.created = append(f.created, *s)
	return nil
}

type fakeFetcher struct {
	posts map[string][]domain.Post
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, depth int) ([]domain.Post, error) {
	if posts, ok := f.posts[url]; ok {
		return posts, nil
	}
	return nil, errors.New("unknown feed")
}

// fakeExtractor treats every whitespace token of the title as an entity.
type fakeExtractor struct{}

func (fakeExtractor) Extract(title string) ports.Entities {
	return ports.Entities{Names: strings.Fields(title)}
}

type fakeArticles struct {
	bodies map[string]string
}

func (f *fakeArticles) FetchText(ctx context.Context, url string) (string, error) {
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return englishBody + " " + url, nil
}

type fakeSummarizer struct {
	texts map[string]string
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, keyword string, articles []string) (string, error) {
	f.calls++
	if text, ok := f.texts[keyword]; ok {
		return text, nil
	}
	return "", errors.New("no model output")
}

type fakeChat struct {
	messages []string
	apps     []string
}

func (f *fakeChat) PostMessage(ctx context.Context, app, text string) error {
	f.apps = append(f.apps, app)
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeChat) Enabled() bool { return true }

func newPipeline(cfg Config, sources *fakeSources, trendy *fakeTrendy,
	summaries *fakeSummaries, fetcher *fakeFetcher, articles *fakeArticles,
	sum *fakeSummarizer, chat *fakeChat) *Pipeline {
	logger := zap.NewNop().Sugar()
	hub := notification.NewHub("", chat, nil, nil, nil, nil, logger)
	return New(cfg, sources, &fakeBanned{}, trendy, summaries, fetcher,
		fakeExtractor{}, articles, sum, hub, logger)
}

func post(title, url string) domain.Post {
	return domain.Post{Title: title, URL: url, PublishedAt: time.Now().Add(-time.Hour)}
}

func TestRunNotifiesNewWordsSorted(t *testing.T) {
	sources := &fakeSources{feeds: []domain.RSSSource{{URL: "https://feed.example.org/rss", Confidence: 1}}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://feed.example.org/rss": {
			post("Lazarus Emotet", "https://news.example.org/a"),
			post("Lazarus Emotet", "https://news.example.org/b"),
			post("Mirai", "https://news.example.org/c"),
		},
	}}
	trendy := newFakeTrendy()
	chat := &fakeChat{}
	cfg := Config{PostsDepth: 20, WordsOccurrence: 2, BreakingNewsThreshold: 100}
	p := newPipeline(cfg, sources, trendy, &fakeSummaries{}, fetcher, &fakeArticles{}, &fakeSummarizer{}, chat)

	p.Run(context.Background())

	if len(trendy.created) != 2 {
		t.Fatalf("expected Emotet and Lazarus created, got %v", trendy.created)
	}
	if len(chat.messages) != 2 {
		t.Fatalf("expected per-item notifications, got %d", len(chat.messages))
	}
	if !strings.Contains(chat.messages[0], "Emotet") || !strings.Contains(chat.messages[1], "Lazarus") {
		t.Errorf("new words must be notified in sorted order: %v", chat.messages)
	}
	if chat.apps[0] != string(notification.AppThreatsWatcher) {
		t.Errorf("expected threats_watcher app, got %s", chat.apps[0])
	}
}

func TestRunFiltersStaleAndUndatedPosts(t *testing.T) {
	sources := &fakeSources{feeds: []domain.RSSSource{{URL: "https://feed.example.org/rss", Confidence: 1}}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://feed.example.org/rss": {
			{Title: "Emotet Emotet", URL: "https://news.example.org/a"}, // zero PublishedAt
			{Title: "Emotet Emotet", URL: "https://news.example.org/b",
				PublishedAt: time.Now().Add(-PostWindow - time.Hour)},
		},
	}}
	trendy := newFakeTrendy()
	chat := &fakeChat{}
	cfg := Config{PostsDepth: 20, WordsOccurrence: 1, BreakingNewsThreshold: 100}
	p := newPipeline(cfg, sources, trendy, &fakeSummaries{}, fetcher, &fakeArticles{}, &fakeSummarizer{}, chat)

	p.Run(context.Background())

	if len(trendy.created) != 0 || len(chat.messages) != 0 {
		t.Error("posts outside the window must not feed the trend counter")
	}
}

func TestRunLinksExistingWordWithoutNotifying(t *testing.T) {
	sources := &fakeSources{feeds: []domain.RSSSource{{URL: "https://feed.example.org/rss", Confidence: 1}}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://feed.example.org/rss": {
			post("Emotet", "https://news.example.org/a"), // already linked
			post("Emotet", "https://news.example.org/b"), // new
		},
	}}
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 7, Name: "Emotet", Occurrences: 3}, "https://news.example.org/a")
	chat := &fakeChat{}
	cfg := Config{PostsDepth: 20, WordsOccurrence: 2, BreakingNewsThreshold: 100}
	p := newPipeline(cfg, sources, trendy, &fakeSummaries{}, fetcher, &fakeArticles{}, &fakeSummarizer{}, chat)

	p.Run(context.Background())

	if len(trendy.created) != 0 {
		t.Errorf("existing word must not be re-created: %v", trendy.created)
	}
	if !trendy.links[7]["https://news.example.org/b"] {
		t.Error("new post url not linked")
	}
	if trendy.increments[7] != 1 {
		t.Errorf("expected one increment for the newly linked url, got %d", trendy.increments[7])
	}
	if len(chat.messages) != 0 {
		t.Error("known word must not notify as new")
	}
}

func TestBreakingNewsFiresAtThreshold(t *testing.T) {
	sources := &fakeSources{feeds: []domain.RSSSource{{URL: "https://feed.example.org/rss", Confidence: 1}}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://feed.example.org/rss": {post("Emotet", "https://news.example.org/b")},
	}}
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 7, Name: "Emotet", Occurrences: 4}, "https://news.example.org/a")
	summaries := &fakeSummaries{}
	sum := &fakeSummarizer{texts: map[string]string{"Emotet": "The botnet is distributing fresh loaders through hijacked reply chains."}}
	chat := &fakeChat{}
	cfg := Config{PostsDepth: 20, WordsOccurrence: 1, BreakingNewsThreshold: 5}
	p := newPipeline(cfg, sources, trendy, summaries, fetcher, &fakeArticles{}, sum, chat)

	p.Run(context.Background())

	if len(summaries.created) != 1 {
		t.Fatalf("expected one stored summary, got %+v", summaries.created)
	}
	s := summaries.created[0]
	if s.Kind != domain.SummaryBreakingNews || s.Keywords != "Emotet" {
		t.Errorf("unexpected summary %+v", s)
	}
	if len(chat.apps) != 1 || chat.apps[0] != string(notification.AppThreatsWatcherBreaking) {
		t.Errorf("expected breaking-news notification, got %v", chat.apps)
	}
}

func TestBreakingNewsCooldown(t *testing.T) {
	sources := &fakeSources{feeds: []domain.RSSSource{{URL: "https://feed.example.org/rss", Confidence: 1}}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://feed.example.org/rss": {post("Emotet", "https://news.example.org/b")},
	}}
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 7, Name: "Emotet", Occurrences: 4}, "https://news.example.org/a")
	summaries := &fakeSummaries{exists: map[string]bool{
		summaryKey(domain.SummaryBreakingNews, "Emotet"): true,
	}}
	chat := &fakeChat{}
	cfg := Config{PostsDepth: 20, WordsOccurrence: 1, BreakingNewsThreshold: 5}
	p := newPipeline(cfg, sources, trendy, summaries, fetcher, &fakeArticles{}, &fakeSummarizer{}, chat)

	p.Run(context.Background())

	if len(summaries.created) != 0 || len(chat.messages) != 0 {
		t.Error("a digest within the cooldown window must suppress the repeat")
	}
}

func TestWordSummaryStoredWithoutNotification(t *testing.T) {
	sources := &fakeSources{feeds: []domain.RSSSource{{URL: "https://feed.example.org/rss", Confidence: 1}}}
	fetcher := &fakeFetcher{posts: map[string][]domain.Post{
		"https://feed.example.org/rss": {post("Emotet", "https://news.example.org/a")},
	}}
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 7, Name: "Emotet", Occurrences: 3},
		"https://news.example.org/a", "https://news.example.org/b", "https://news.example.org/c")
	summaries := &fakeSummaries{}
	sum := &fakeSummarizer{texts: map[string]string{"Emotet": "Campaign activity continues against European targets."}}
	chat := &fakeChat{}
	cfg := Config{PostsDepth: 20, WordsOccurrence: 1, BreakingNewsThreshold: 100}
	p := newPipeline(cfg, sources, trendy, summaries, fetcher, &fakeArticles{}, sum, chat)

	p.Run(context.Background())

	if len(summaries.created) != 1 || summaries.created[0].Kind != domain.SummaryTrendyWord {
		t.Fatalf("expected a stored per-word digest, got %+v", summaries.created)
	}
	if len(chat.messages) != 0 {
		t.Error("per-word digests are store-only")
	}
}

func TestScoreWordsAveragesMatchingSources(t *testing.T) {
	// Unreachable ports make the redirect probe fail fast and fall back to
	// the original hostname.
	feeds := []domain.RSSSource{
		{URL: "http://127.0.0.1:1/feed", Confidence: 1}, // 100
		{URL: "http://[::1]:1/feed", Confidence: 3},     // 20
	}
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 1, Name: "Emotet"},
		"http://127.0.0.1:1/a", "http://[::1]:1/b", "http://localhost:1/c")
	trendy.listed = []domain.TrendyWord{*trendy.words["Emotet"]}
	p := newPipeline(Config{}, &fakeSources{feeds: feeds}, trendy, &fakeSummaries{},
		&fakeFetcher{}, &fakeArticles{}, &fakeSummarizer{}, &fakeChat{})

	p.scoreWords(context.Background(), feeds)

	if got := trendy.scores[1]; got != 60 {
		t.Errorf("expected mean of matching sources 60, got %v", got)
	}
}

func TestScoreWordsListsEveryWord(t *testing.T) {
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 1, Name: "Emotet"})
	trendy.seed(&domain.TrendyWord{ID: 2, Name: "Qakbot"})
	trendy.listed = []domain.TrendyWord{*trendy.words["Emotet"], *trendy.words["Qakbot"]}
	p := newPipeline(Config{}, &fakeSources{}, trendy, &fakeSummaries{},
		&fakeFetcher{}, &fakeArticles{}, &fakeSummarizer{}, &fakeChat{})

	p.scoreWords(context.Background(), nil)

	// Scoring walks the whole trend table, so the list request must be
	// unbounded.
	if len(trendy.listLimits) != 1 || trendy.listLimits[0] > 0 {
		t.Errorf("expected one unbounded list request, got %v", trendy.listLimits)
	}
}

func TestScoreWordsSkipsUnchangedScore(t *testing.T) {
	trendy := newFakeTrendy()
	trendy.seed(&domain.TrendyWord{ID: 1, Name: "Emotet", Score: 0})
	trendy.listed = []domain.TrendyWord{*trendy.words["Emotet"]}
	p := newPipeline(Config{}, &fakeSources{}, trendy, &fakeSummaries{},
		&fakeFetcher{}, &fakeArticles{}, &fakeSummarizer{}, &fakeChat{})

	p.scoreWords(context.Background(), nil)

	if len(trendy.scores) != 0 {
		t.Errorf("unchanged score must not be rewritten: %v", trendy.scores)
	}
}

func TestCleanupUsesTTL(t *testing.T) {
	trendy := newFakeTrendy()
	p := newPipeline(Config{}, &fakeSources{}, trendy, &fakeSummaries{},
		&fakeFetcher{}, &fakeArticles{}, &fakeSummarizer{}, &fakeChat{})

	before := time.Now().Add(-WordTTL)
	p.Cleanup(context.Background())

	if trendy.deleteAfter.Before(before.Add(-time.Minute)) || trendy.deleteAfter.After(time.Now()) {
		t.Errorf("cleanup cutoff not at TTL: %v", trendy.deleteAfter)
	}
}
