// Package dataleak implements the leak-hunting pipeline: metasearch queries
// per keyword plus a paste-stream scan, with first-match-wins attribution.
package dataleak

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

const (
	// PasteDepth is how many recent pastes one tick inspects.
	PasteDepth = 250

	// PasteTTL is how long a scanned paste id is remembered.
	PasteTTL = 2 * time.Hour

	// maxStoredContent bounds the excerpt persisted with a paste alert.
	maxStoredContent = 4096
)

type Pipeline struct {
	keywords ports.KeywordRepository
	alerts   ports.DataLeakAlertRepository
	pastes   ports.PasteIDRepository
	search   ports.Metasearcher
	scraper  ports.PasteScraper
	hub      *notification.Hub
	logger   *zap.SugaredLogger
}

func New(
	keywords ports.KeywordRepository,
	alerts ports.DataLeakAlertRepository,
	pastes ports.PasteIDRepository,
	search ports.Metasearcher,
	scraper ports.PasteScraper,
	hub *notification.Hub,
	logger *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		keywords: keywords,
		alerts:   alerts,
		pastes:   pastes,
		search:   search,
		scraper:  scraper,
		hub:      hub,
		logger:   logger.Named("data_leak"),
	}
}

// matcher is one keyword compiled for body matching.
type matcher struct {
	keyword domain.Keyword
	pattern *regexp.Regexp // nil for substring keywords
}

// Run is one leak-hunting tick: metasearch per keyword, then the paste scan
// across all keywords. New findings are batched per keyword for the hub.
func (p *Pipeline) Run(ctx context.Context) {
	keywords, err := p.keywords.ListKeywords(ctx)
	if err != nil {
		p.logger.Errorw("failed to list keywords", "error", err)
		return
	}
	if len(keywords) == 0 {
		return
	}

	matchers := compileMatchers(keywords, p.logger)
	newAlerts := make(map[int64][]notification.Item)

	for _, kw := range keywords {
		p.searchKeyword(ctx, kw, newAlerts)
	}
	p.scanPastes(ctx, matchers, newAlerts)

	for _, kw := range keywords {
		items := newAlerts[kw.ID]
		if len(items) > 0 {
			p.hub.Notify(ctx, notification.AppDataLeak, kw.Name, items)
		}
	}
}

// searchKeyword queries the metasearch endpoint and records unseen URLs.
func (p *Pipeline) searchKeyword(ctx context.Context, kw domain.Keyword, out map[int64][]notification.Item) {
	urls, err := p.search.Search(ctx, kw.Name)
	if err != nil {
		p.logger.Warnw("metasearch failed", "keyword", kw.Name, "error", err)
		return
	}

	for _, u := range urls {
		item, created := p.record(ctx, kw, u, "")
		if created {
			out[kw.ID] = append(out[kw.ID], item)
		}
	}
}

// scanPastes walks the recent paste listing, fetching each unseen body and
// matching it against every keyword. The first matching keyword wins.
func (p *Pipeline) scanPastes(ctx context.Context, matchers []matcher, out map[int64][]notification.Item) {
	pastes, err := p.scraper.ListRecent(ctx, PasteDepth)
	if err != nil {
		p.logger.Warnw("paste listing failed", "error", err)
		return
	}

	for _, paste := range pastes {
		seen, err := p.pastes.PasteSeen(ctx, paste.Key)
		if err != nil {
			p.logger.Errorw("paste lookup failed", "paste", paste.Key, "error", err)
			continue
		}
		if seen {
			continue
		}

		body, err := p.scraper.FetchRaw(ctx, paste.ScrapeURL)
		if err != nil {
			p.logger.Warnw("raw paste fetch failed", "paste", paste.Key, "error", err)
			continue
		}
		if err := p.pastes.RecordPaste(ctx, paste.Key); err != nil {
			p.logger.Errorw("failed to record paste id", "paste", paste.Key, "error", err)
		}

		folded := strings.ToLower(body)
		for _, m := range matchers {
			if !m.matches(folded) {
				continue
			}
			excerpt := body
			if len(excerpt) > maxStoredContent {
				excerpt = excerpt[:maxStoredContent]
			}
			item, created := p.record(ctx, m.keyword, paste.ScrapeURL, excerpt)
			if created {
				out[m.keyword.ID] = append(out[m.keyword.ID], item)
			}
			break
		}
	}
}

// record persists one finding unless the URL is already known for the
// keyword.
func (p *Pipeline) record(ctx context.Context, kw domain.Keyword, url, content string) (notification.Item, bool) {
	exists, err := p.alerts.LeakURLExists(ctx, kw.ID, url)
	if err != nil {
		p.logger.Errorw("alert lookup failed", "keyword", kw.Name, "url", url, "error", err)
		return notification.Item{}, false
	}
	if exists {
		return notification.Item{}, false
	}

	alert := &domain.DataLeakAlert{
		KeywordID: kw.ID,
		Keyword:   kw.Name,
		URL:       url,
		Content:   content,
	}
	if _, err := p.alerts.CreateLeakAlert(ctx, alert); err != nil {
		p.logger.Errorw("failed to create leak alert", "keyword", kw.Name, "url", url, "error", err)
		return notification.Item{}, false
	}
	p.logger.Infow("leak alert created", "keyword", kw.Name, "url", url)

	return notification.Item{Word: kw.Name, URL: url}, true
}

// Cleanup drops paste ids older than the TTL.
func (p *Pipeline) Cleanup(ctx context.Context) {
	deleted, err := p.pastes.DeletePastesBefore(ctx, time.Now().Add(-PasteTTL))
	if err != nil {
		p.logger.Errorw("paste cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Infow("paste ids expired", "count", deleted)
	}
}

func compileMatchers(keywords []domain.Keyword, logger *zap.SugaredLogger) []matcher {
	matchers := make([]matcher, 0, len(keywords))
	for _, kw := range keywords {
		m := matcher{keyword: kw}
		if kw.IsRegex {
			re, err := regexp.Compile(kw.RegexPattern)
			if err != nil {
				logger.Errorw("stored regex does not compile", "keyword", kw.Name, "error", err)
				continue
			}
			m.pattern = re
		}
		matchers = append(matchers, m)
	}
	return matchers
}

func (m matcher) matches(foldedBody string) bool {
	if m.pattern != nil {
		return m.pattern.MatchString(foldedBody)
	}
	return strings.Contains(foldedBody, strings.ToLower(m.keyword.Name))
}
