package dataleak

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

type fakeKeywords struct {
	keywords []domain.Keyword
}

func (f *fakeKeywords) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	return f.keywords, nil
}

func (f *fakeKeywords) CreateKeyword(ctx context.Context, kw *domain.Keyword) error {
	f.keywords = append(f.keywords, *kw)
	return nil
}

type fakeAlerts struct {
	known   map[string]bool // "keywordID|url"
	created []domain.DataLeakAlert
}

func leakKey(id int64, url string) string {
	return fmt.Sprintf("%d|%s", id, url)
}

func (f *fakeAlerts) LeakURLExists(ctx context.Context, keywordID int64, url string) (bool, error) {
	return f.known[leakKey(keywordID, url)], nil
}

func (f *fakeAlerts) CreateLeakAlert(ctx context.Context, alert *domain.DataLeakAlert) (*domain.DataLeakAlert, error) {
	if f.known == nil {
		f.known = make(map[string]bool)
	}
	f.known[leakKey(alert.KeywordID, alert.URL)] = true
	f.created = append(f.created, *alert)
	return alert, nil
}

type fakePastes struct {
	seen    map[string]bool
	deleted time.Time
}

func (f *fakePastes) PasteSeen(ctx context.Context, id string) (bool, error) {
	return f.seen[id], nil
}

func (f *fakePastes) RecordPaste(ctx context.Context, id string) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[id] = true
	return nil
}

func (f *fakePastes) DeletePastesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleted = cutoff
	return 3, nil
}

type fakeSearch struct {
	results map[string][]string
}

func (f *fakeSearch) Search(ctx context.Context, keyword string) ([]string, error) {
	return f.results[keyword], nil
}

type fakeScraper struct {
	pastes  []ports.Paste
	bodies  map[string]string
	fetched []string
}

func (f *fakeScraper) ListRecent(ctx context.Context, limit int) ([]ports.Paste, error) {
	return f.pastes, nil
}

func (f *fakeScraper) FetchRaw(ctx context.Context, scrapeURL string) (string, error) {
	f.fetched = append(f.fetched, scrapeURL)
	return f.bodies[scrapeURL], nil
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

func newPipeline(kw *fakeKeywords, alerts *fakeAlerts, pastes *fakePastes,
	search *fakeSearch, scraper *fakeScraper, chat *fakeChat) *Pipeline {
	logger := zap.NewNop().Sugar()
	hub := notification.NewHub("", chat, nil, nil, nil, nil, logger)
	return New(kw, alerts, pastes, search, scraper, hub, logger)
}

func TestSearchRecordsNewURLs(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{{ID: 1, Name: "secret-project"}}}
	alerts := &fakeAlerts{}
	chat := &fakeChat{}
	search := &fakeSearch{results: map[string][]string{
		"secret-project": {"https://forum.example.org/t/1", "https://forum.example.org/t/2"},
	}}
	p := newPipeline(kw, alerts, &fakePastes{}, search, &fakeScraper{}, chat)

	p.Run(context.Background())

	if len(alerts.created) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts.created))
	}
	if len(chat.messages) != 2 {
		t.Errorf("expected per-item notifications below the threshold, got %d", len(chat.messages))
	}
}

func TestSearchSkipsKnownURLs(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{{ID: 1, Name: "secret-project"}}}
	alerts := &fakeAlerts{known: map[string]bool{
		leakKey(1, "https://forum.example.org/t/1"): true,
	}}
	search := &fakeSearch{results: map[string][]string{
		"secret-project": {"https://forum.example.org/t/1"},
	}}
	chat := &fakeChat{}
	p := newPipeline(kw, alerts, &fakePastes{}, search, &fakeScraper{}, chat)

	p.Run(context.Background())

	if len(alerts.created) != 0 || len(chat.messages) != 0 {
		t.Error("already-known URL must not re-alert")
	}
}

func TestPasteScanFirstMatchWins(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{
		{ID: 1, Name: "alpha-corp"},
		{ID: 2, Name: "beta-corp"},
	}}
	alerts := &fakeAlerts{}
	scraper := &fakeScraper{
		pastes: []ports.Paste{{Key: "p1", ScrapeURL: "https://paste.example.org/raw/p1"}},
		bodies: map[string]string{
			"https://paste.example.org/raw/p1": "Leaked creds for ALPHA-CORP and beta-corp employees",
		},
	}
	p := newPipeline(kw, alerts, &fakePastes{}, &fakeSearch{}, scraper, &fakeChat{})

	p.Run(context.Background())

	if len(alerts.created) != 1 {
		t.Fatalf("first matching keyword wins, got %d alerts", len(alerts.created))
	}
	if alerts.created[0].KeywordID != 1 {
		t.Errorf("expected first keyword attributed, got %d", alerts.created[0].KeywordID)
	}
}

func TestPasteScanCaseInsensitive(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{{ID: 1, Name: "Alpha-Corp"}}}
	alerts := &fakeAlerts{}
	scraper := &fakeScraper{
		pastes: []ports.Paste{{Key: "p1", ScrapeURL: "https://paste.example.org/raw/p1"}},
		bodies: map[string]string{"https://paste.example.org/raw/p1": "dump of aLpHa-CoRp data"},
	}
	p := newPipeline(kw, alerts, &fakePastes{}, &fakeSearch{}, scraper, &fakeChat{})

	p.Run(context.Background())

	if len(alerts.created) != 1 {
		t.Errorf("substring match must be case-folded, got %d alerts", len(alerts.created))
	}
}

func TestPasteScanRegexKeyword(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{
		{ID: 1, Name: "corp-mail", IsRegex: true, RegexPattern: `[a-z0-9.]+@corp\.example\.org`},
	}}
	alerts := &fakeAlerts{}
	scraper := &fakeScraper{
		pastes: []ports.Paste{{Key: "p1", ScrapeURL: "https://paste.example.org/raw/p1"}},
		bodies: map[string]string{"https://paste.example.org/raw/p1": "contact jane.doe@corp.example.org now"},
	}
	p := newPipeline(kw, alerts, &fakePastes{}, &fakeSearch{}, scraper, &fakeChat{})

	p.Run(context.Background())

	if len(alerts.created) != 1 {
		t.Errorf("regex keyword must match, got %d alerts", len(alerts.created))
	}
}

func TestPasteScanSkipsSeenPastes(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{{ID: 1, Name: "alpha-corp"}}}
	pastes := &fakePastes{seen: map[string]bool{"p1": true}}
	scraper := &fakeScraper{
		pastes: []ports.Paste{{Key: "p1", ScrapeURL: "https://paste.example.org/raw/p1"}},
	}
	p := newPipeline(kw, &fakeAlerts{}, pastes, &fakeSearch{}, scraper, &fakeChat{})

	p.Run(context.Background())

	if len(scraper.fetched) != 0 {
		t.Error("seen paste must not be fetched again")
	}
}

func TestPasteScanRecordsIDEvenWithoutMatch(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{{ID: 1, Name: "alpha-corp"}}}
	pastes := &fakePastes{}
	scraper := &fakeScraper{
		pastes: []ports.Paste{{Key: "p1", ScrapeURL: "https://paste.example.org/raw/p1"}},
		bodies: map[string]string{"https://paste.example.org/raw/p1": "nothing interesting"},
	}
	p := newPipeline(kw, &fakeAlerts{}, pastes, &fakeSearch{}, scraper, &fakeChat{})

	p.Run(context.Background())

	if !pastes.seen["p1"] {
		t.Error("scanned paste id must be remembered regardless of matches")
	}
}

func TestGroupingAtThreshold(t *testing.T) {
	urls := make([]string, notification.GroupThreshold)
	for i := range urls {
		urls[i] = "https://forum.example.org/t/" + string(rune('a'+i))
	}
	kw := &fakeKeywords{keywords: []domain.Keyword{{ID: 1, Name: "secret-project"}}}
	search := &fakeSearch{results: map[string][]string{"secret-project": urls}}
	chat := &fakeChat{}
	p := newPipeline(kw, &fakeAlerts{}, &fakePastes{}, search, &fakeScraper{}, chat)

	p.Run(context.Background())

	if len(chat.messages) != 1 {
		t.Fatalf("expected one grouped message, got %d", len(chat.messages))
	}
	if chat.apps[0] != string(notification.AppDataLeakGroup) {
		t.Errorf("expected group variant, got %s", chat.apps[0])
	}
}

func TestInvalidStoredRegexSkipped(t *testing.T) {
	kw := &fakeKeywords{keywords: []domain.Keyword{
		{ID: 1, Name: "broken", IsRegex: true, RegexPattern: "("},
		{ID: 2, Name: "alpha-corp"},
	}}
	alerts := &fakeAlerts{}
	scraper := &fakeScraper{
		pastes: []ports.Paste{{Key: "p1", ScrapeURL: "https://paste.example.org/raw/p1"}},
		bodies: map[string]string{"https://paste.example.org/raw/p1": "alpha-corp dump"},
	}
	p := newPipeline(kw, alerts, &fakePastes{}, &fakeSearch{}, scraper, &fakeChat{})

	p.Run(context.Background())

	if len(alerts.created) != 1 || alerts.created[0].KeywordID != 2 {
		t.Errorf("broken regex must be skipped, valid keyword still matched: %+v", alerts.created)
	}
}

func TestCleanupUsesTTL(t *testing.T) {
	pastes := &fakePastes{}
	p := newPipeline(&fakeKeywords{}, &fakeAlerts{}, pastes, &fakeSearch{}, &fakeScraper{}, &fakeChat{})

	before := time.Now().Add(-PasteTTL)
	p.Cleanup(context.Background())

	if pastes.deleted.Before(before.Add(-time.Minute)) || pastes.deleted.After(time.Now()) {
		t.Errorf("cleanup cutoff not at TTL: %v", pastes.deleted)
	}
}
