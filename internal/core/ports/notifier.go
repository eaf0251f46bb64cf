package ports

import (
	"context"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// Channel adapters translate one rendered payload into one wire protocol.
// Adapters never raise: failures are logged and swallowed so a broken sink
// cannot take a pipeline down.

// ChatNotifier posts a plain-text message (Slack-style chat.postMessage).
type ChatNotifier interface {
	PostMessage(ctx context.Context, app, text string) error
	Enabled() bool
}

// RoomNotifier posts an HTML-formatted room message (Matrix-style).
type RoomNotifier interface {
	PostHTML(ctx context.Context, app, plain, html string) error
	Enabled() bool
}

// MailNotifier delivers one HTML message per notification.
type MailNotifier interface {
	SendHTML(ctx context.Context, app, subject, htmlBody string, to []string) error
	Enabled() bool
}

// TicketRecord identifies a case or alert inside the ticketing system.
type TicketRecord struct {
	ID     string
	IsCase bool
}

// TicketAlert is the payload for a new ticketing alert.
type TicketAlert struct {
	Title       string
	Description string
	Severity    int
	TLP         int
	PAP         int
	Tags        []string
	TicketID    string
	Observables []domain.Observable
}

// Ticketer is the ticketing sink (TheHive-style REST).
type Ticketer interface {
	FindByCustomField(ctx context.Context, ticketID string) (*TicketRecord, error)
	FindByObservable(ctx context.Context, value string) (*TicketRecord, error)
	CreateAlert(ctx context.Context, alert TicketAlert) error
	AddObservables(ctx context.Context, rec TicketRecord, obs []domain.Observable, tlp int) error
	AddComment(ctx context.Context, rec TicketRecord, message string) error
	Enabled() bool
}

// CaseManager is the MISP-style event sink consulted through the case
// registry.
type CaseManager interface {
	EventExists(ctx context.Context, uuid string) (bool, error)
	CreateEvent(ctx context.Context, info string, obj domain.DomainObject) (string, error)
	UpdateEvent(ctx context.Context, uuid string, obj domain.DomainObject) error
	Enabled() bool
}
