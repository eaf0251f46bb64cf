package sitemonitor

import (
	"context"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
	"github.com/hive-corporation/nightwatch/internal/notification"
)

// RefreshRDAP re-checks registrar and expiry for every watched site that
// already carries registration data. A registrar change emits code 17, an
// expiry change code 18. Sites parked in the "available"/"disabled"
// legitimacy states auto-transition to their "registered" counterpart when a
// registrar appears.
func (p *Pipeline) RefreshRDAP(ctx context.Context) {
	sites, err := p.sites.ListAllSites(ctx)
	if err != nil {
		p.logger.Errorw("failed to list sites for rdap refresh", "error", err)
		return
	}

	for i := range sites {
		site := &sites[i]
		if site.Registrar == "" {
			continue
		}
		p.refreshSite(ctx, site)
	}
}

// DiscoverWHOIS backfills registration data for sites that have none yet.
// The first successful lookup emits code 20; a parked site proved registered
// additionally emits code 17 for the transition.
func (p *Pipeline) DiscoverWHOIS(ctx context.Context) {
	sites, err := p.sites.ListAllSites(ctx)
	if err != nil {
		p.logger.Errorw("failed to list sites for whois discovery", "error", err)
		return
	}

	for i := range sites {
		site := &sites[i]
		if site.Registrar != "" {
			continue
		}
		info, found := p.enricher.Lookup(ctx, site.Domain)
		if !found || info.Registrar == "" {
			continue
		}

		legitimacy := registeredLegitimacy(site.Legitimacy)
		if err := p.sites.UpdateSiteRDAP(ctx, site.ID, info.Registrar, info.Expiry, legitimacy); err != nil {
			p.logger.Errorw("failed to store discovered registration",
				"domain", site.Domain, "error", err)
			continue
		}

		p.emitRDAPAlert(ctx, site, &domain.SiteAlert{
			SiteID:       site.ID,
			SiteDomain:   site.Domain,
			Code:         domain.CodeRDAPBackfill,
			NewRegistrar: info.Registrar,
			NewExpiry:    info.Expiry,
		})
		if legitimacy != site.Legitimacy {
			p.emitRDAPAlert(ctx, site, &domain.SiteAlert{
				SiteID:       site.ID,
				SiteDomain:   site.Domain,
				Code:         domain.CodeRegistrarChange,
				NewRegistrar: info.Registrar,
				NewExpiry:    info.Expiry,
			})
		}
	}
}

func (p *Pipeline) refreshSite(ctx context.Context, site *domain.WatchedSite) {
	info, found := p.enricher.Lookup(ctx, site.Domain)
	if !found {
		return
	}

	registrarChanged := info.Registrar != "" && info.Registrar != site.Registrar
	expiryChanged := info.Expiry != nil && !sameDate(info.Expiry, site.DomainExpiry)
	if !registrarChanged && !expiryChanged {
		return
	}

	legitimacy := site.Legitimacy
	if registrarChanged {
		legitimacy = registeredLegitimacy(site.Legitimacy)
	}

	registrar := site.Registrar
	if info.Registrar != "" {
		registrar = info.Registrar
	}
	expiry := site.DomainExpiry
	if info.Expiry != nil {
		expiry = info.Expiry
	}
	if err := p.sites.UpdateSiteRDAP(ctx, site.ID, registrar, expiry, legitimacy); err != nil {
		p.logger.Errorw("failed to store rdap refresh", "domain", site.Domain, "error", err)
		return
	}

	code := domain.CodeExpiryChange
	if registrarChanged {
		code = domain.CodeRegistrarChange
	}
	p.emitRDAPAlert(ctx, site, &domain.SiteAlert{
		SiteID:       site.ID,
		SiteDomain:   site.Domain,
		Code:         code,
		OldRegistrar: site.Registrar,
		NewRegistrar: info.Registrar,
		OldExpiry:    site.DomainExpiry,
		NewExpiry:    info.Expiry,
	})
}

// RefreshLegitimateDomains keeps the allow-list registration data current.
// Allow-listed domains never alert.
func (p *Pipeline) RefreshLegitimateDomains(ctx context.Context) {
	domains, err := p.legit.ListLegitimateDomains(ctx)
	if err != nil {
		p.logger.Errorw("failed to list legitimate domains", "error", err)
		return
	}

	for _, d := range domains {
		info, found := p.enricher.Lookup(ctx, d.Domain)
		if !found {
			continue
		}
		if info.Registrar == d.Registrar && sameDate(info.Expiry, d.Expiry) {
			continue
		}
		if err := p.legit.UpdateLegitimateDomainRDAP(ctx, d.ID, info.Registrar, info.Expiry); err != nil {
			p.logger.Errorw("failed to store allow-list registration",
				"domain", d.Domain, "error", err)
		}
	}
}

func (p *Pipeline) emitRDAPAlert(ctx context.Context, site *domain.WatchedSite, alert *domain.SiteAlert) {
	recent, err := p.alerts.RecentSiteAlerts(ctx, site.ID, time.Now().Add(-DedupWindow), 2)
	if err != nil {
		p.logger.Errorw("failed to read recent alerts", "domain", site.Domain, "error", err)
	}
	for i := range recent {
		if alert.SamePayload(&recent[i]) {
			return
		}
	}

	if _, err := p.alerts.CreateSiteAlert(ctx, alert); err != nil {
		p.logger.Errorw("failed to create rdap alert", "domain", site.Domain, "error", err)
		return
	}
	p.logger.Infow("registration alert created", "domain", site.Domain, "code", alert.Code)

	p.hub.Notify(ctx, notification.AppSiteMonitoring, site.Domain, []notification.Item{
		{Domain: site.Domain, SiteID: site.ID, Object: site},
	})
}

// registeredLegitimacy maps the "available"/"disabled" parking states to
// their registered counterparts once a registrar is known.
func registeredLegitimacy(current int) int {
	switch current {
	case domain.LegitimacyAvailable:
		return domain.LegitimacyRegistered
	case domain.LegitimacyDisabled:
		return domain.LegitimacyDisabledReg
	}
	return current
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
