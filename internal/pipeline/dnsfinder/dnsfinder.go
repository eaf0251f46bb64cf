// Package dnsfinder implements look-alike domain discovery: periodic
// permutation fuzzing of watched domains and streaming certificate
// transparency matching of watched keywords. Both feed the same twisted-DNS
// store and alert log.
package dnsfinder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

type Pipeline struct {
	watched  ports.WatchedDNSRepository
	keywords ports.WatchedKeywordRepository
	twisted  ports.TwistedDNSRepository
	alerts   ports.DNSAlertRepository
	fuzzer   ports.Fuzzer
	stream   ports.CertStream
	hub      *notification.Hub
	logger   *zap.SugaredLogger

	keywordCache    []domain.WatchedKeyword
	keywordCachedAt time.Time
}

func New(
	watched ports.WatchedDNSRepository,
	keywords ports.WatchedKeywordRepository,
	twisted ports.TwistedDNSRepository,
	alerts ports.DNSAlertRepository,
	fuzzer ports.Fuzzer,
	stream ports.CertStream,
	hub *notification.Hub,
	logger *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		watched:  watched,
		keywords: keywords,
		twisted:  twisted,
		alerts:   alerts,
		fuzzer:   fuzzer,
		stream:   stream,
		hub:      hub,
		logger:   logger.Named("dns_finder"),
	}
}

// Run is one permutation-fuzzing tick over every watched domain. Findings
// are batched per parent so bursts collapse into a grouped notification.
func (p *Pipeline) Run(ctx context.Context) {
	seeds, err := p.watched.ListWatchedDNS(ctx)
	if err != nil {
		p.logger.Errorw("failed to list watched domains", "error", err)
		return
	}

	for _, seed := range seeds {
		p.fuzzSeed(ctx, seed)
	}
}

func (p *Pipeline) fuzzSeed(ctx context.Context, seed domain.WatchedDNS) {
	results, err := p.fuzzer.Run(ctx, seed.Domain)
	if err != nil {
		p.logger.Warnw("fuzzer run failed", "domain", seed.Domain, "error", err)
		return
	}

	var items []notification.Item
	for _, r := range results {
		if r.Domain == seed.Domain || !r.Registered() {
			continue
		}
		tw, created := p.recordTwisted(ctx, &domain.TwistedDNS{
			Domain:           r.Domain,
			SourceWatchedDNS: &seed,
			Fuzzer:           r.Fuzzer,
		})
		if !created {
			continue
		}
		items = append(items, notification.Item{
			Word:   seed.Domain,
			Domain: tw.Domain,
			Object: tw,
			Tags: []string{
				"fuzzer:" + tw.Fuzzer,
				"corporate_dns:" + seed.Domain,
				"subdomain:" + tw.Domain,
			},
		})
	}

	if len(items) > 0 {
		p.hub.Notify(ctx, notification.AppDNSFinder, seed.Domain, items)
	}
}

// recordTwisted creates the twisted-DNS row and its alert, skipping names
// already known. Unique violations from a racing worker count as known.
func (p *Pipeline) recordTwisted(ctx context.Context, tw *domain.TwistedDNS) (*domain.TwistedDNS, bool) {
	exists, err := p.twisted.TwistedExists(ctx, tw.Domain)
	if err != nil {
		p.logger.Errorw("twisted lookup failed", "domain", tw.Domain, "error", err)
		return nil, false
	}
	if exists {
		return nil, false
	}

	created, err := p.twisted.CreateTwisted(ctx, tw)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warnw("failed to create twisted entry", "domain", tw.Domain, "error", err)
		}
		return nil, false
	}

	if _, err := p.alerts.CreateDNSAlert(ctx, &domain.DNSAlert{
		TwistedID: created.ID,
		Domain:    created.Domain,
	}); err != nil {
		p.logger.Errorw("failed to create dns alert", "domain", created.Domain, "error", err)
	}
	p.logger.Infow("twisted domain recorded", "domain", created.Domain, "parent", created.ParentName())
	return created, true
}
