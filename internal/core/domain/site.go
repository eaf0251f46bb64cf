package domain

import "time"

// Site legitimacy states. Unknown registrar data keeps a site in the
// "available"/"disabled" states until an RDAP refresh proves registration.
const (
	LegitimacyUnset       = 1
	LegitimacyLegitimate  = 2
	LegitimacyRegistered  = 3
	LegitimacyAvailable   = 4
	LegitimacyDisabledReg = 5
	LegitimacyDisabled    = 6
)

// WatchedSite is a monitored web property. The last_* fields hold the state
// the site_monitoring pipeline diffs against; they are the only mutable part
// of the row once created.
type WatchedSite struct {
	ID                int64
	Domain            string
	IPMonitoring      bool
	ContentMonitoring bool
	MailMonitoring    bool
	Expiry            *time.Time
	LastIP            string
	LastIPSecond      string
	LastMailIP        string
	LastMX            []string
	LastContentHash   string
	WebStatus         int
	Monitored         bool
	TicketID          string
	Registrar         string
	DomainExpiry      *time.Time
	Legitimacy        int
	CreatedAt         time.Time
}

// Active reports whether the site is still inside its monitoring window.
func (s *WatchedSite) Active(now time.Time) bool {
	return s.Expiry == nil || s.Expiry.After(now)
}

// DomainObject is the shape the MISP object builder accepts. Both watched
// sites and twisted DNS entries satisfy it.
type DomainObject interface {
	DomainName() string
	IPs() []string
	MailIP() string
	MX() []string
	Ticket() string
}

func (s *WatchedSite) DomainName() string { return s.Domain }

func (s *WatchedSite) IPs() []string {
	var ips []string
	if s.LastIP != "" {
		ips = append(ips, s.LastIP)
	}
	if s.LastIPSecond != "" {
		ips = append(ips, s.LastIPSecond)
	}
	return ips
}

func (s *WatchedSite) MailIP() string { return s.LastMailIP }
func (s *WatchedSite) MX() []string   { return s.LastMX }
func (s *WatchedSite) Ticket() string { return s.TicketID }
