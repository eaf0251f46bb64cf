package domain

import "time"

// Watched entities are operator-curated rows that seed the monitors. They are
// created and mutated only through the admin collaborator; the pipelines treat
// them as read-mostly input.

// WatchedDNS seeds permutation fuzzing in the dns_finder pipeline.
type WatchedDNS struct {
	ID        int64
	Domain    string
	CreatedAt time.Time
}

// WatchedKeyword seeds certificate-transparency matching.
type WatchedKeyword struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Keyword is a data-leak search term. When IsRegex is set, RegexPattern is
// applied with re.search semantics; otherwise Name is matched as an exact
// case-folded substring.
type Keyword struct {
	ID           int64
	Name         string
	IsRegex      bool
	RegexPattern string
	CreatedAt    time.Time
}

// BannedWord filters noise out of trend extraction.
type BannedWord struct {
	ID   int64
	Name string
}

// RSSSource is a feed the threats_watcher pipeline polls.
// Confidence is 1, 2 or 3 and maps to a reliability percentage.
type RSSSource struct {
	ID         int64
	URL        string
	Confidence int
	CreatedAt  time.Time
}

// ConfidencePercent maps a source confidence level to the reliability
// percentage it contributes to a trendy word's score.
func (s RSSSource) ConfidencePercent() float64 {
	switch s.Confidence {
	case 1:
		return 100
	case 2:
		return 50
	case 3:
		return 20
	}
	return 0
}

// LegitimateDomain is an explicit allow-list entry. A domain present here is
// never accepted as a WatchedSite.
type LegitimateDomain struct {
	ID              int64
	Domain          string
	TicketID        string
	Contact         string
	Comments        string
	Expiry          *time.Time
	DomainCreatedAt *time.Time
	Registrar       string
	Repurchased     bool
	CreatedAt       time.Time
}

// Subscriber carries the per-channel opt-ins of one operator for a given
// notification source.
type Subscriber struct {
	UserID  int64
	Email   string
	Slack   bool
	Citadel bool
	TheHive bool
	EmailOn bool
}
