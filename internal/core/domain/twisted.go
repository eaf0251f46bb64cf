package domain

import "time"

// TwistedDNS is a look-alike domain discovered either by permutation fuzzing
// against a WatchedDNS or by certificate-transparency matching against a
// WatchedKeyword. Exactly one of SourceWatchedDNS / SourceKeyword is set.
type TwistedDNS struct {
	ID               int64
	Domain           string
	SourceWatchedDNS *WatchedDNS
	SourceKeyword    *WatchedKeyword
	Fuzzer           string
	CreatedAt        time.Time
}

// Valid checks the xor constraint on the two possible parents.
func (t *TwistedDNS) Valid() bool {
	return (t.SourceWatchedDNS != nil) != (t.SourceKeyword != nil)
}

// ParentName returns the name of whichever watched entity produced this
// entry.
func (t *TwistedDNS) ParentName() string {
	if t.SourceWatchedDNS != nil {
		return t.SourceWatchedDNS.Domain
	}
	if t.SourceKeyword != nil {
		return t.SourceKeyword.Name
	}
	return ""
}

func (t *TwistedDNS) DomainName() string { return t.Domain }
func (t *TwistedDNS) IPs() []string      { return nil }
func (t *TwistedDNS) MailIP() string     { return "" }
func (t *TwistedDNS) MX() []string       { return nil }
func (t *TwistedDNS) Ticket() string     { return "" }

// FuzzResult is one entry parsed from the permutation fuzzer's JSON output.
type FuzzResult struct {
	Domain  string   `json:"domain-name"`
	Fuzzer  string   `json:"fuzzer"`
	DNSA    []string `json:"dns-a"`
	DNSAAAA []string `json:"dns-aaaa"`
	DNSMX   []string `json:"dns-mx"`
	DNSNS   []string `json:"dns-ns"`
}

// Registered reports whether the fuzzed domain has at least one live DNS
// record. The fuzzer renders unreachable resolvers as "!ServFail".
func (f FuzzResult) Registered() bool {
	for _, rrs := range [][]string{f.DNSA, f.DNSAAAA, f.DNSMX, f.DNSNS} {
		for _, rr := range rrs {
			if rr != "" && rr != "!ServFail" {
				return true
			}
		}
	}
	return false
}
