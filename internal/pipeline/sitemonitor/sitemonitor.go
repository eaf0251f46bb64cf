// Package sitemonitor implements the website drift pipeline: content
// fuzzy-hash diff, A-record subnet checks and MX/mail-IP checks per watched
// site, plus the RDAP refresh jobs.
package sitemonitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/adapter/enrich"
	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

// DedupWindow is how far back identical alert payloads suppress a new one.
const DedupWindow = 3 * time.Hour

type Pipeline struct {
	sites    ports.WatchedSiteRepository
	alerts   ports.SiteAlertRepository
	legit    ports.LegitimateDomainRepository
	resolver ports.Resolver
	prober   ports.ContentProber
	enricher ports.DomainEnricher
	certs    ports.CertExpiryChecker
	hub      *notification.Hub
	logger   *zap.SugaredLogger
}

func New(
	sites ports.WatchedSiteRepository,
	alerts ports.SiteAlertRepository,
	legit ports.LegitimateDomainRepository,
	resolver ports.Resolver,
	prober ports.ContentProber,
	enricher ports.DomainEnricher,
	certs ports.CertExpiryChecker,
	hub *notification.Hub,
	logger *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		sites:    sites,
		alerts:   alerts,
		legit:    legit,
		resolver: resolver,
		prober:   prober,
		enricher: enricher,
		certs:    certs,
		hub:      hub,
		logger:   logger.Named("site_monitoring"),
	}
}

// Run is one monitoring tick over every active site. Per-site failures are
// logged and the tick continues.
func (p *Pipeline) Run(ctx context.Context) {
	sites, err := p.sites.ListActiveSites(ctx, time.Now())
	if err != nil {
		p.logger.Errorw("failed to list active sites", "error", err)
		return
	}

	for i := range sites {
		p.checkSite(ctx, &sites[i])
	}
}

func (p *Pipeline) checkSite(ctx context.Context, site *domain.WatchedSite) {
	alert := domain.SiteAlert{
		SiteID:     site.ID,
		SiteDomain: site.Domain,
	}
	var ipChanged, ipSecondChanged, contentChanged, mailChanged bool

	if site.ContentMonitoring {
		contentChanged = p.checkContent(ctx, site, &alert)
	}
	if site.IPMonitoring {
		ipChanged, ipSecondChanged = p.checkIPs(ctx, site, &alert)
	}
	if site.MailMonitoring {
		mailChanged = p.checkMail(ctx, site, &alert)
	}

	if err := p.sites.UpdateSiteState(ctx, site); err != nil {
		p.logger.Errorw("failed to persist site state", "domain", site.Domain, "error", err)
		return
	}

	alert.Code = domain.CombineAlertCode(ipChanged, ipSecondChanged, contentChanged, mailChanged)
	if alert.Code == domain.CodeNone {
		return
	}
	p.emit(ctx, site, &alert)
}

// checkContent probes the site body and diffs the fuzzy hash against the
// stored digest. The first successful probe only seeds the digest.
func (p *Pipeline) checkContent(ctx context.Context, site *domain.WatchedSite, alert *domain.SiteAlert) bool {
	probe, err := p.prober.Probe(ctx, site.Domain)
	if err != nil {
		p.logger.Warnw("content probe failed", "domain", site.Domain, "error", err)
		return false
	}
	site.WebStatus = probe.Status
	if probe.Status != 200 || probe.Digest == "" {
		return false
	}

	if site.LastContentHash == "" {
		site.LastContentHash = probe.Digest
		return false
	}

	score, err := p.prober.Diff(site.LastContentHash, probe.Digest)
	if err != nil {
		p.logger.Warnw("digest diff failed", "domain", site.Domain, "error", err)
		site.LastContentHash = probe.Digest
		return false
	}
	if score <= enrich.ContentChangeThreshold {
		return false
	}

	alert.DifferenceScore = score
	site.LastContentHash = probe.Digest
	return true
}

// checkIPs resolves A records and applies the /16 subnet rule to the first
// two addresses. Stored IPs are always updated; a third address is only
// logged.
func (p *Pipeline) checkIPs(ctx context.Context, site *domain.WatchedSite, alert *domain.SiteAlert) (bool, bool) {
	records, err := p.resolver.Resolve(ctx, site.Domain)
	if err != nil {
		p.logger.Warnw("dns resolution failed", "domain", site.Domain, "error", err)
		return false, false
	}

	var newIP, newIPSecond string
	if len(records.IPs) > 0 {
		newIP = records.IPs[0]
	}
	if len(records.IPs) > 1 {
		newIPSecond = records.IPs[1]
	}
	if len(records.IPs) > 2 {
		p.logger.Infow("site resolves to more than two addresses",
			"domain", site.Domain, "third_ip", records.IPs[2])
	}

	ipChanged := subnetChanged(site.LastIP, newIP)
	ipSecondChanged := subnetChanged(site.LastIPSecond, newIPSecond)

	if ipChanged {
		alert.OldIP, alert.NewIP = site.LastIP, newIP
	}
	if ipSecondChanged {
		alert.OldIPSecond, alert.NewIPSecond = site.LastIPSecond, newIPSecond
	}
	site.LastIP = newIP
	site.LastIPSecond = newIPSecond
	return ipChanged, ipSecondChanged
}

// checkMail compares the MX set and applies the /16 rule to the mail-host
// address.
func (p *Pipeline) checkMail(ctx context.Context, site *domain.WatchedSite, alert *domain.SiteAlert) bool {
	records, err := p.resolver.Resolve(ctx, site.Domain)
	if err != nil {
		p.logger.Warnw("mx resolution failed", "domain", site.Domain, "error", err)
		return false
	}

	mxChanged := !equalStrings(site.LastMX, records.MX)
	mailIPChanged := subnetChanged(site.LastMailIP, records.MailIP)
	if !mxChanged && !mailIPChanged {
		return false
	}

	alert.OldMX, alert.NewMX = site.LastMX, records.MX
	alert.OldMailIP, alert.NewMailIP = site.LastMailIP, records.MailIP
	site.LastMX = records.MX
	site.LastMailIP = records.MailIP
	return true
}

// emit writes the alert unless an identical payload exists inside the dedup
// window, then hands the site to the hub.
func (p *Pipeline) emit(ctx context.Context, site *domain.WatchedSite, alert *domain.SiteAlert) {
	recent, err := p.alerts.RecentSiteAlerts(ctx, site.ID, time.Now().Add(-DedupWindow), 2)
	if err != nil {
		p.logger.Errorw("failed to read recent alerts", "domain", site.Domain, "error", err)
	}
	for i := range recent {
		if alert.SamePayload(&recent[i]) {
			p.logger.Infow("duplicate alert suppressed", "domain", site.Domain, "code", alert.Code)
			return
		}
	}

	created, err := p.alerts.CreateSiteAlert(ctx, alert)
	if err != nil {
		p.logger.Errorw("failed to create alert", "domain", site.Domain, "error", err)
		return
	}
	p.logger.Infow("site alert created", "domain", site.Domain, "code", created.Code)

	extra := changeObservables(alert)
	if o, ok := p.certObservable(ctx, site.Domain); ok {
		extra = append(extra, o)
	}

	p.hub.Notify(ctx, notification.AppSiteMonitoring, site.Domain, []notification.Item{
		{
			Domain: site.Domain,
			SiteID: site.ID,
			Object: site,
			Extra:  extra,
		},
	})
}

// certObservable reads the notAfter date off the site's certificate so the
// alert carries the current TLS expiry alongside the change pairs.
func (p *Pipeline) certObservable(ctx context.Context, dom string) (domain.Observable, bool) {
	if p.certs == nil {
		return domain.Observable{}, false
	}
	expiry, ok := p.certs.Expiry(ctx, dom)
	if !ok {
		return domain.Observable{}, false
	}
	return domain.NewObservable(expiry.Format("2006-01-02"), "ssl_expiry")
}

// changeObservables carries the old/new value pairs of the alert as tagged
// IOCs for ticketing.
func changeObservables(alert *domain.SiteAlert) []domain.Observable {
	var obs []domain.Observable
	add := func(value, tag string) {
		if o, ok := domain.NewObservable(value, tag); ok {
			obs = append(obs, o)
		}
	}
	add(alert.OldIP, "old_ip")
	add(alert.NewIP, "new_ip")
	add(alert.OldIPSecond, "old_ip_second")
	add(alert.NewIPSecond, "new_ip_second")
	add(alert.OldMailIP, "old_mail_ip")
	add(alert.NewMailIP, "new_mail_ip")
	return obs
}

// subnetChanged applies the /16 rule: a change is reported when either side
// is empty while the other is not, or both are set in different /16 subnets.
func subnetChanged(old, new string) bool {
	if old == "" && new == "" {
		return false
	}
	if old == "" || new == "" {
		return true
	}
	return !enrich.SameSubnet16(old, new)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
