package domain

import "time"

// Alert codes for site monitoring. Codes 1..16 combine the four change bits
// per the explicit table below; 17/18/20 come from the RDAP refresh job.
const (
	CodeNone              = 0
	CodeIP                = 1
	CodeIPSecond          = 2
	CodeBothIPs           = 3
	CodeContent           = 4
	CodeContentIP         = 5
	CodeContentIPSecond   = 6
	CodeContentBothIPs    = 7
	CodeMail              = 8
	CodeMailIP            = 9
	CodeMailIPSecond      = 10
	CodeMailBothIPs       = 11
	CodeMailContent       = 12
	CodeMailContentIP     = 13
	CodeMailContentIP2    = 14
	CodeMailContentAllIPs = 16
	CodeRegistrarChange   = 17
	CodeExpiryChange      = 18
	CodeRDAPBackfill      = 20
)

// CombineAlertCode maps the four change bits onto the alert-code table.
func CombineAlertCode(ip, ipSecond, content, mail bool) int {
	switch {
	case mail && content && ip && ipSecond:
		return CodeMailContentAllIPs
	case mail && content && ipSecond:
		return CodeMailContentIP2
	case mail && content && ip:
		return CodeMailContentIP
	case mail && content:
		return CodeMailContent
	case mail && ip && ipSecond:
		return CodeMailBothIPs
	case mail && ipSecond:
		return CodeMailIPSecond
	case mail && ip:
		return CodeMailIP
	case mail:
		return CodeMail
	case content && ip && ipSecond:
		return CodeContentBothIPs
	case content && ipSecond:
		return CodeContentIPSecond
	case content && ip:
		return CodeContentIP
	case content:
		return CodeContent
	case ip && ipSecond:
		return CodeBothIPs
	case ipSecond:
		return CodeIPSecond
	case ip:
		return CodeIP
	}
	return CodeNone
}

// SiteAlert is an append-only record of one detected change on a watched
// site. Status disables it; the payload is never mutated.
type SiteAlert struct {
	ID              int64
	SiteID          int64
	SiteDomain      string
	Code            int
	NewIP           string
	OldIP           string
	NewIPSecond     string
	OldIPSecond     string
	NewMX           []string
	OldMX           []string
	NewMailIP       string
	OldMailIP       string
	DifferenceScore int
	NewRegistrar    string
	OldRegistrar    string
	NewExpiry       *time.Time
	OldExpiry       *time.Time
	Status          bool
	CreatedAt       time.Time
}

// SamePayload compares the code-specific fields of two site alerts. It backs
// the three-hour deduplication window.
func (a *SiteAlert) SamePayload(b *SiteAlert) bool {
	if a.Code != b.Code {
		return false
	}
	if a.NewIP != b.NewIP || a.OldIP != b.OldIP {
		return false
	}
	if a.NewIPSecond != b.NewIPSecond || a.OldIPSecond != b.OldIPSecond {
		return false
	}
	if a.NewMailIP != b.NewMailIP || a.OldMailIP != b.OldMailIP {
		return false
	}
	if a.DifferenceScore != b.DifferenceScore {
		return false
	}
	if a.NewRegistrar != b.NewRegistrar || a.OldRegistrar != b.OldRegistrar {
		return false
	}
	if len(a.NewMX) != len(b.NewMX) {
		return false
	}
	for i := range a.NewMX {
		if a.NewMX[i] != b.NewMX[i] {
			return false
		}
	}
	return true
}

// DataLeakAlert records one leaked-content sighting for a keyword.
type DataLeakAlert struct {
	ID        int64
	KeywordID int64
	Keyword   string
	URL       string
	Content   string
	Status    bool
	CreatedAt time.Time
}

// DNSAlert records one new twisted-DNS discovery.
type DNSAlert struct {
	ID        int64
	TwistedID int64
	Domain    string
	Status    bool
	CreatedAt time.Time
}
