package dnsfinder

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

type fakeWatched struct {
	seeds []domain.WatchedDNS
}

func (f *fakeWatched) ListWatchedDNS(ctx context.Context) ([]domain.WatchedDNS, error) {
	return f.seeds, nil
}

func (f *fakeWatched) WatchedDNSExists(ctx context.Context, dom string) (bool, error) {
	return false, nil
}

type fakeKeywords struct {
	keywords []domain.WatchedKeyword
	calls    int
}

func (f *fakeKeywords) ListWatchedKeywords(ctx context.Context) ([]domain.WatchedKeyword, error) {
	f.calls++
	return f.keywords, nil
}

type fakeTwisted struct {
	known   map[string]bool
	created []domain.TwistedDNS
	nextID  int64
}

func (f *fakeTwisted) TwistedExists(ctx context.Context, dom string) (bool, error) {
	return f.known[dom], nil
}

func (f *fakeTwisted) TwistedExistsForParentDomain(ctx context.Context, parent string) (bool, error) {
	return false, nil
}

func (f *fakeTwisted) CreateTwisted(ctx context.Context, tw *domain.TwistedDNS) (*domain.TwistedDNS, error) {
	if f.known == nil {
		f.known = make(map[string]bool)
	}
	f.nextID++
	tw.ID = f.nextID
	tw.CreatedAt = time.Now()
	f.known[tw.Domain] = true
	f.created = append(f.created, *tw)
	return tw, nil
}

func (f *fakeTwisted) ListTwistedSince(ctx context.Context, since time.Time, limit int) ([]domain.TwistedDNS, error) {
	return f.created, nil
}

type fakeDNSAlerts struct {
	created []domain.DNSAlert
}

func (f *fakeDNSAlerts) CreateDNSAlert(ctx context.Context, alert *domain.DNSAlert) (*domain.DNSAlert, error) {
	f.created = append(f.created, *alert)
	return alert, nil
}

type fakeFuzzer struct {
	results map[string][]domain.FuzzResult
}

func (f *fakeFuzzer) Run(ctx context.Context, dom string) ([]domain.FuzzResult, error) {
	return f.results[dom], nil
}

type fakeStream struct {
	updates []ports.CertUpdate
}

func (f *fakeStream) Run(ctx context.Context, updates chan<- ports.CertUpdate) error {
	for _, u := range f.updates {
		updates <- u
	}
	return nil
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

func newPipeline(watched *fakeWatched, keywords *fakeKeywords, twisted *fakeTwisted,
	alerts *fakeDNSAlerts, fuzzer *fakeFuzzer, stream *fakeStream, chat *fakeChat) *Pipeline {
	logger := zap.NewNop().Sugar()
	hub := notification.NewHub("", chat, nil, nil, nil, nil, logger)
	return New(watched, keywords, twisted, alerts, fuzzer, stream, hub, logger)
}

func TestFuzzRecordsRegisteredLookalikes(t *testing.T) {
	watched := &fakeWatched{seeds: []domain.WatchedDNS{{ID: 1, Domain: "example.org"}}}
	fuzzer := &fakeFuzzer{results: map[string][]domain.FuzzResult{
		"example.org": {
			{Domain: "example.org", Fuzzer: "*original", DNSA: []string{"192.0.2.1"}},
			{Domain: "examp1e.org", Fuzzer: "homoglyph", DNSA: []string{"198.51.100.7"}},
			{Domain: "exampel.org", Fuzzer: "transposition"}, // unregistered
		},
	}}
	twisted := &fakeTwisted{}
	alerts := &fakeDNSAlerts{}
	chat := &fakeChat{}
	p := newPipeline(watched, &fakeKeywords{}, twisted, alerts, fuzzer, &fakeStream{}, chat)

	p.Run(context.Background())

	if len(twisted.created) != 1 {
		t.Fatalf("expected one look-alike recorded, got %+v", twisted.created)
	}
	tw := twisted.created[0]
	if tw.Domain != "examp1e.org" || tw.SourceWatchedDNS.ID != 1 {
		t.Errorf("unexpected entry %+v", tw)
	}
	if len(alerts.created) != 1 || alerts.created[0].TwistedID != tw.ID {
		t.Errorf("dns alert missing: %+v", alerts.created)
	}
	if len(chat.messages) != 1 {
		t.Errorf("expected one notification, got %d", len(chat.messages))
	}
}

func TestFuzzSkipsKnownDomains(t *testing.T) {
	watched := &fakeWatched{seeds: []domain.WatchedDNS{{ID: 1, Domain: "example.org"}}}
	fuzzer := &fakeFuzzer{results: map[string][]domain.FuzzResult{
		"example.org": {{Domain: "examp1e.org", Fuzzer: "homoglyph", DNSA: []string{"198.51.100.7"}}},
	}}
	twisted := &fakeTwisted{known: map[string]bool{"examp1e.org": true}}
	chat := &fakeChat{}
	p := newPipeline(watched, &fakeKeywords{}, twisted, &fakeDNSAlerts{}, fuzzer, &fakeStream{}, chat)

	p.Run(context.Background())

	if len(twisted.created) != 0 || len(chat.messages) != 0 {
		t.Error("known look-alike must not re-alert")
	}
}

func TestFuzzBurstGroupsNotification(t *testing.T) {
	results := make([]domain.FuzzResult, notification.GroupThreshold)
	for i := range results {
		results[i] = domain.FuzzResult{
			Domain: "variant" + string(rune('a'+i)) + ".org",
			Fuzzer: "homoglyph",
			DNSA:   []string{"198.51.100.7"},
		}
	}
	watched := &fakeWatched{seeds: []domain.WatchedDNS{{ID: 1, Domain: "example.org"}}}
	fuzzer := &fakeFuzzer{results: map[string][]domain.FuzzResult{"example.org": results}}
	chat := &fakeChat{}
	p := newPipeline(watched, &fakeKeywords{}, &fakeTwisted{}, &fakeDNSAlerts{}, fuzzer, &fakeStream{}, chat)

	p.Run(context.Background())

	if len(chat.messages) != 1 {
		t.Fatalf("expected grouped notification, got %d messages", len(chat.messages))
	}
	if chat.apps[0] != string(notification.AppDNSFinderGroup) {
		t.Errorf("expected group variant, got %s", chat.apps[0])
	}
}

func TestCertStreamMatchesKeyword(t *testing.T) {
	keywords := &fakeKeywords{keywords: []domain.WatchedKeyword{{ID: 1, Name: "examplecorp"}}}
	stream := &fakeStream{updates: []ports.CertUpdate{
		{AllDomains: []string{"*.login-EXAMPLECORP.com", "unrelated.org"}},
	}}
	twisted := &fakeTwisted{}
	chat := &fakeChat{}
	p := newPipeline(&fakeWatched{}, keywords, twisted, &fakeDNSAlerts{}, &fakeFuzzer{}, stream, chat)

	p.RunCertStream(context.Background())

	if len(twisted.created) != 1 {
		t.Fatalf("expected one match, got %+v", twisted.created)
	}
	tw := twisted.created[0]
	if tw.Domain != "login-examplecorp.com" {
		t.Errorf("wildcard prefix must be stripped and name folded, got %q", tw.Domain)
	}
	if tw.SourceKeyword == nil || tw.SourceKeyword.Name != "examplecorp" {
		t.Errorf("keyword source missing: %+v", tw)
	}
	if tw.Fuzzer != "cert_transparency" {
		t.Errorf("expected cert_transparency fuzzer label, got %q", tw.Fuzzer)
	}
	if len(chat.apps) != 1 || chat.apps[0] != string(notification.AppDNSFinderCertStream) {
		t.Errorf("expected cert-stream app, got %v", chat.apps)
	}
}

func TestCertStreamFirstKeywordWins(t *testing.T) {
	keywords := &fakeKeywords{keywords: []domain.WatchedKeyword{
		{ID: 1, Name: "example"},
		{ID: 2, Name: "examplecorp"},
	}}
	stream := &fakeStream{updates: []ports.CertUpdate{
		{AllDomains: []string{"login.examplecorp.com"}},
	}}
	twisted := &fakeTwisted{}
	p := newPipeline(&fakeWatched{}, keywords, twisted, &fakeDNSAlerts{}, &fakeFuzzer{}, stream, &fakeChat{})

	p.RunCertStream(context.Background())

	if len(twisted.created) != 1 || twisted.created[0].SourceKeyword.ID != 1 {
		t.Errorf("first matching keyword wins, got %+v", twisted.created)
	}
}

func TestCertStreamKeywordCache(t *testing.T) {
	keywords := &fakeKeywords{keywords: []domain.WatchedKeyword{{ID: 1, Name: "examplecorp"}}}
	stream := &fakeStream{updates: []ports.CertUpdate{
		{AllDomains: []string{"a.examplecorp.com"}},
		{AllDomains: []string{"b.examplecorp.com"}},
		{AllDomains: []string{"c.examplecorp.com"}},
	}}
	p := newPipeline(&fakeWatched{}, keywords, &fakeTwisted{}, &fakeDNSAlerts{}, &fakeFuzzer{}, stream, &fakeChat{})

	p.RunCertStream(context.Background())

	if keywords.calls != 1 {
		t.Errorf("keyword list must be cached across updates, got %d loads", keywords.calls)
	}
}
