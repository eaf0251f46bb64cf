package ports

import (
	"context"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// WatchedSiteRepository is the persistence port for monitored sites.
type WatchedSiteRepository interface {
	ListActiveSites(ctx context.Context, now time.Time) ([]domain.WatchedSite, error)
	ListAllSites(ctx context.Context) ([]domain.WatchedSite, error)
	FindSiteByDomain(ctx context.Context, dom string) (*domain.WatchedSite, error)
	UpdateSiteState(ctx context.Context, site *domain.WatchedSite) error
	UpdateSiteRDAP(ctx context.Context, siteID int64, registrar string, expiry *time.Time, legitimacy int) error
	UpdateSiteTicket(ctx context.Context, siteID int64, ticketID string) error
	SiteExists(ctx context.Context, dom string) (bool, error)
}

// WatchedDNSRepository lists the seeds for permutation fuzzing.
type WatchedDNSRepository interface {
	ListWatchedDNS(ctx context.Context) ([]domain.WatchedDNS, error)
	WatchedDNSExists(ctx context.Context, dom string) (bool, error)
}

// WatchedKeywordRepository lists the certificate-transparency match terms.
type WatchedKeywordRepository interface {
	ListWatchedKeywords(ctx context.Context) ([]domain.WatchedKeyword, error)
}

// KeywordRepository manages data-leak search terms. CreateKeyword rejects
// regex keywords whose pattern does not compile.
type KeywordRepository interface {
	ListKeywords(ctx context.Context) ([]domain.Keyword, error)
	CreateKeyword(ctx context.Context, kw *domain.Keyword) error
}

// RSSSourceRepository lists the polled feeds.
type RSSSourceRepository interface {
	ListRSSSources(ctx context.Context) ([]domain.RSSSource, error)
}

// BannedWordRepository lists the trend-extraction noise filter.
type BannedWordRepository interface {
	ListBannedWords(ctx context.Context) ([]string, error)
}

// LegitimateDomainRepository lists allow-listed domains for the RDAP refresh.
type LegitimateDomainRepository interface {
	ListLegitimateDomains(ctx context.Context) ([]domain.LegitimateDomain, error)
	UpdateLegitimateDomainRDAP(ctx context.Context, id int64, registrar string, expiry *time.Time) error
}

// TrendyWordRepository persists extracted trend state.
type TrendyWordRepository interface {
	FindTrendyWord(ctx context.Context, name string) (*domain.TrendyWord, error)
	CreateTrendyWord(ctx context.Context, word *domain.TrendyWord, urls []string) (*domain.TrendyWord, error)
	LinkPostURL(ctx context.Context, wordID int64, url string) (bool, error)
	IncrementOccurrences(ctx context.Context, wordID int64, delta int) error
	UpdateScore(ctx context.Context, wordID int64, score float64) error
	ListPostURLs(ctx context.Context, wordID int64) ([]domain.PostURL, error)
	// ListTrendyWords returns words newest-first; limit <= 0 means no limit.
	ListTrendyWords(ctx context.Context, limit int) ([]domain.TrendyWord, error)
	DeleteTrendyWordsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TwistedDNSRepository persists look-alike discoveries.
type TwistedDNSRepository interface {
	TwistedExists(ctx context.Context, dom string) (bool, error)
	TwistedExistsForParentDomain(ctx context.Context, parent string) (bool, error)
	CreateTwisted(ctx context.Context, tw *domain.TwistedDNS) (*domain.TwistedDNS, error)
	ListTwistedSince(ctx context.Context, since time.Time, limit int) ([]domain.TwistedDNS, error)
}

// SiteAlertRepository is the append-only site alert log.
type SiteAlertRepository interface {
	CreateSiteAlert(ctx context.Context, alert *domain.SiteAlert) (*domain.SiteAlert, error)
	RecentSiteAlerts(ctx context.Context, siteID int64, since time.Time, limit int) ([]domain.SiteAlert, error)
	ListSiteAlertsSince(ctx context.Context, since time.Time, limit int) ([]domain.SiteAlert, error)
}

// DataLeakAlertRepository is the append-only data-leak alert log.
type DataLeakAlertRepository interface {
	LeakURLExists(ctx context.Context, keywordID int64, url string) (bool, error)
	CreateLeakAlert(ctx context.Context, alert *domain.DataLeakAlert) (*domain.DataLeakAlert, error)
}

// DNSAlertRepository is the append-only dns-finder alert log.
type DNSAlertRepository interface {
	CreateDNSAlert(ctx context.Context, alert *domain.DNSAlert) (*domain.DNSAlert, error)
}

// SummaryRepository stores generated digests.
type SummaryRepository interface {
	SummaryExistsSince(ctx context.Context, kind domain.SummaryKind, keyword string, since time.Time) (bool, error)
	CreateSummary(ctx context.Context, s *domain.Summary) error
}

// PasteIDRepository tracks already-scanned pastes.
type PasteIDRepository interface {
	PasteSeen(ctx context.Context, id string) (bool, error)
	RecordPaste(ctx context.Context, id string) error
	DeletePastesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CaseRegistry is the domain-to-case mapping. Mutations are atomic; deletion
// happens when no monitor references the domain any more.
type CaseRegistry interface {
	GetCases(ctx context.Context, dom string) ([]string, error)
	UpsertCase(ctx context.Context, dom, uuid string) error
	CheckAndDeleteIfUnused(ctx context.Context, dom string) (bool, error)
}

// SubscriberRepository resolves who receives notifications for a source.
type SubscriberRepository interface {
	ListSubscribers(ctx context.Context, source string) ([]domain.Subscriber, error)
}
