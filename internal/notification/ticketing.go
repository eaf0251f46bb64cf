package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

// NewTicketID mints the ticket reference carried in the ticketing custom
// field: date prefix plus six hex characters.
func NewTicketID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.Format("060102"), uuid.NewString()[:6])
}

// ParentDomain reduces a (possibly deep) hostname to its registrable parent.
// Values without a known public suffix come back unchanged.
func ParentDomain(dom string) string {
	dom = strings.TrimSuffix(strings.ToLower(dom), ".")
	parent, err := publicsuffix.EffectiveTLDPlusOne(dom)
	if err != nil {
		return dom
	}
	return parent
}

// Ticketing runs the case-reuse protocol against the ticketing and case
// sinks. Follow-up findings for a domain land on the record already open for
// it instead of spawning a new one.
type Ticketing struct {
	ticketer ports.Ticketer
	caseMgr  ports.CaseManager
	registry ports.CaseRegistry
	sites    ports.WatchedSiteRepository
	logger   *zap.SugaredLogger
}

func NewTicketing(
	ticketer ports.Ticketer,
	caseMgr ports.CaseManager,
	registry ports.CaseRegistry,
	sites ports.WatchedSiteRepository,
	logger *zap.SugaredLogger,
) *Ticketing {
	return &Ticketing{
		ticketer: ticketer,
		caseMgr:  caseMgr,
		registry: registry,
		sites:    sites,
		logger:   logger.Named("ticketing"),
	}
}

// reuseTLP marks follow-up observables added to an already-open record.
const reuseTLP = 2

// ProcessTicket attaches one item to the ticketing system. The ticket
// reference comes from the item's own object, falling back to the watched
// parent site's stored ticket_id. Resolution order: custom-field match,
// observable match on the parent domain, then a fresh alert carrying a newly
// minted reference.
func (t *Ticketing) ProcessTicket(ctx context.Context, app App, item Item) {
	if t.ticketer == nil || !t.ticketer.Enabled() {
		return
	}
	cfg := ConfigFor(app)
	obs := BuildObservables(app, item)

	parent := ""
	if item.Domain != "" {
		parent = ParentDomain(item.Domain)
	}

	ticketID := ""
	if item.Object != nil {
		ticketID = item.Object.Ticket()
	}
	ticketSiteID := item.SiteID
	if ticketID == "" && parent != "" && t.sites != nil {
		site, err := t.sites.FindSiteByDomain(ctx, parent)
		if err != nil {
			t.logger.Debugw("no watched parent site", "domain", parent, "error", err)
		} else if site != nil {
			ticketID = site.TicketID
			if ticketSiteID == 0 {
				ticketSiteID = site.ID
			}
		}
	}

	var rec *ports.TicketRecord
	var err error
	if ticketID != "" {
		rec, err = t.ticketer.FindByCustomField(ctx, ticketID)
		if err != nil {
			t.logger.Errorw("ticket lookup by custom field failed", "ticket_id", ticketID, "error", err)
		}
	}
	if rec == nil && parent != "" {
		rec, err = t.ticketer.FindByObservable(ctx, parent)
		if err != nil {
			t.logger.Errorw("ticket lookup by observable failed", "domain", item.Domain, "error", err)
		}
	}

	if rec != nil {
		recordCaseReuse("ticket_reused")
		if err := t.ticketer.AddObservables(ctx, *rec, obs, reuseTLP); err != nil {
			t.logger.Errorw("failed to add observables", "record", rec.ID, "error", err)
		}
		comment := fmt.Sprintf("%s - new activity from %s: %s",
			time.Now().UTC().Format("2006-01-02"), app, itemLabel(item))
		if err := t.ticketer.AddComment(ctx, *rec, comment); err != nil {
			t.logger.Errorw("failed to add comment", "record", rec.ID, "error", err)
		}
		return
	}

	// Both lookups missed; only now does a fresh reference get minted.
	if ticketID == "" {
		ticketID = NewTicketID(time.Now().UTC())
		if ticketSiteID != 0 {
			if err := t.sites.UpdateSiteTicket(ctx, ticketSiteID, ticketID); err != nil {
				t.logger.Errorw("failed to persist ticket reference",
					"site_id", ticketSiteID, "ticket_id", ticketID, "error", err)
			}
		}
	}

	recordCaseReuse("ticket_created")
	alert := ports.TicketAlert{
		Title:       fmt.Sprintf("%s: %s", Subject(app), itemLabel(item)),
		Description: Render(app, item, ""),
		Severity:    cfg.Severity,
		TLP:         cfg.TLP,
		PAP:         cfg.PAP,
		Tags:        []string{"nightwatch", string(app)},
		TicketID:    ticketID,
		Observables: obs,
	}
	if err := t.ticketer.CreateAlert(ctx, alert); err != nil {
		t.logger.Errorw("failed to create ticketing alert", "ticket_id", ticketID, "error", err)
	}
}

// ProcessCase updates or opens the case-manager event for the item's domain
// object. The registry keeps the domain-to-event mapping; the most recent
// still-existing event wins.
func (t *Ticketing) ProcessCase(ctx context.Context, app App, item Item) {
	if t.caseMgr == nil || !t.caseMgr.Enabled() || item.Object == nil {
		return
	}
	obj := item.Object
	parent := ParentDomain(obj.DomainName())

	uuids, err := t.registry.GetCases(ctx, parent)
	if err != nil {
		t.logger.Errorw("case registry lookup failed", "domain", parent, "error", err)
		return
	}

	// Most recent last; walk backwards.
	for i := len(uuids) - 1; i >= 0; i-- {
		exists, err := t.caseMgr.EventExists(ctx, uuids[i])
		if err != nil {
			t.logger.Errorw("event existence check failed", "uuid", uuids[i], "error", err)
			return
		}
		if !exists {
			continue
		}
		recordCaseReuse("event_reused")
		if err := t.caseMgr.UpdateEvent(ctx, uuids[i], obj); err != nil {
			t.logger.Errorw("failed to update event", "uuid", uuids[i], "error", err)
		} else if err := t.registry.UpsertCase(ctx, parent, uuids[i]); err != nil {
			t.logger.Errorw("failed to bump case registry", "domain", parent, "error", err)
		}
		return
	}

	recordCaseReuse("event_created")
	info := fmt.Sprintf("%s: %s", Subject(app), obj.DomainName())
	newUUID, err := t.caseMgr.CreateEvent(ctx, info, obj)
	if err != nil {
		t.logger.Errorw("failed to create event", "domain", parent, "error", err)
		return
	}
	if err := t.registry.UpsertCase(ctx, parent, newUUID); err != nil {
		t.logger.Errorw("failed to record case", "domain", parent, "uuid", newUUID, "error", err)
	}
}

func itemLabel(item Item) string {
	switch {
	case item.Domain != "":
		return item.Domain
	case item.Word != "" && item.URL != "":
		return item.Word + " (" + item.URL + ")"
	case item.Word != "":
		return item.Word
	}
	return item.URL
}
