package ports

import (
	"context"
	"time"
)

// Enrichers are stateless adapters turning raw observations into structured
// findings. "Not found" is not an error: lookups return zero values and a
// found flag, per the enrichment-empty rule of the error taxonomy.

// RegistrationInfo is the RDAP/WHOIS result for a domain.
type RegistrationInfo struct {
	Registrar string
	Expiry    *time.Time
}

// DomainEnricher resolves registrar and expiry, RDAP first, screen-scraped
// WHOIS as fallback. Failure of both returns an empty info and found=false.
type DomainEnricher interface {
	Lookup(ctx context.Context, dom string) (RegistrationInfo, bool)
}

// HostRecords is one DNS snapshot for a monitored host.
type HostRecords struct {
	IPs    []string // A records, sorted by numeric IP ascending
	MX     []string // textual MX RRs, sorted
	MailIP string   // first A record of mail.<domain>
}

// Resolver queries A/MX records. Empty results on NXDOMAIN or timeout.
type Resolver interface {
	Resolve(ctx context.Context, dom string) (HostRecords, error)
}

// ContentProbe is the result of one HTTPS body fetch.
type ContentProbe struct {
	Status int
	Digest string // TLSH digest of the body, empty when the body is too small
}

// ContentProber fetches a site body and computes its fuzzy hash. Diff
// returns the length-weighted TLSH distance between two digests.
type ContentProber interface {
	Probe(ctx context.Context, dom string) (ContentProbe, error)
	Diff(oldDigest, newDigest string) (int, error)
}

// CertExpiryChecker reads the notAfter date off the peer certificate.
type CertExpiryChecker interface {
	Expiry(ctx context.Context, dom string) (time.Time, bool)
}

// Entities is the outcome of NER plus threat-pattern extraction on one
// headline.
type Entities struct {
	Names     []string // PER/ORG/LOC/MISC survivors
	CVEs      []string
	Attackers []string
}

// All returns every retained token in one slice.
func (e Entities) All() []string {
	out := make([]string, 0, len(e.Names)+len(e.CVEs)+len(e.Attackers))
	out = append(out, e.Names...)
	out = append(out, e.CVEs...)
	out = append(out, e.Attackers...)
	return out
}

// EntityExtractor runs the NER model and the CVE/actor regexes. A model
// that failed to load yields empty entity sets, never an error.
type EntityExtractor interface {
	Extract(title string) Entities
}
