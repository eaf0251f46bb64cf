package dnsfinder

import (
	"context"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

const (
	// certUpdateBuffer bounds the producer-consumer channel between the
	// stream client and the matcher.
	certUpdateBuffer = 256

	keywordCacheTTL = time.Minute
)

// RunCertStream is the long-lived certificate-transparency worker. It
// returns when ctx is cancelled.
func (p *Pipeline) RunCertStream(ctx context.Context) {
	updates := make(chan ports.CertUpdate, certUpdateBuffer)

	go func() {
		if err := p.stream.Run(ctx, updates); err != nil && ctx.Err() == nil {
			p.logger.Errorw("certificate stream stopped", "error", err)
		}
		close(updates)
	}()

	for update := range updates {
		p.matchUpdate(ctx, update)
	}
}

func (p *Pipeline) matchUpdate(ctx context.Context, update ports.CertUpdate) {
	keywords := p.cachedKeywords(ctx)
	if len(keywords) == 0 {
		return
	}

	for _, raw := range update.AllDomains {
		name := strings.ToLower(strings.TrimPrefix(raw, "*."))
		if name == "" {
			continue
		}
		for i := range keywords {
			kw := &keywords[i]
			if !strings.Contains(name, strings.ToLower(kw.Name)) {
				continue
			}
			tw, created := p.recordTwisted(ctx, &domain.TwistedDNS{
				Domain:        name,
				SourceKeyword: kw,
				Fuzzer:        "cert_transparency",
			})
			if created {
				p.hub.Notify(ctx, notification.AppDNSFinderCertStream, kw.Name, []notification.Item{
					{
						Word:   kw.Name,
						Domain: tw.Domain,
						Object: tw,
						Tags: []string{
							"corporate_keyword:" + kw.Name,
							"subdomain:" + tw.Domain,
						},
					},
				})
			}
			break
		}
	}
}

// cachedKeywords reloads the watched keyword list at most once per TTL.
// The stream worker is the only reader, so no locking is needed.
func (p *Pipeline) cachedKeywords(ctx context.Context) []domain.WatchedKeyword {
	if time.Since(p.keywordCachedAt) < keywordCacheTTL {
		return p.keywordCache
	}
	keywords, err := p.keywords.ListWatchedKeywords(ctx)
	if err != nil {
		p.logger.Errorw("failed to list watched keywords", "error", err)
		return p.keywordCache
	}
	p.keywordCache = keywords
	p.keywordCachedAt = time.Now()
	return p.keywordCache
}
