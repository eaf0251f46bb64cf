// Package enrich holds the stateless enrichment adapters: RDAP/WHOIS
// registration lookup, DNS resolution, content fuzzy-hashing, certificate
// expiry and NER entity extraction.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

// rdapEndpoints maps a TLD to its registry RDAP base. Unlisted TLDs go
// straight to the WHOIS fallback.
var rdapEndpoints = map[string]string{
	"com":  "https://rdap.verisign.com/com/v1",
	"net":  "https://rdap.verisign.com/net/v1",
	"org":  "https://rdap.publicinterestregistry.org/rdap",
	"info": "https://rdap.identitydigital.services/rdap",
	"fr":   "https://rdap.nic.fr",
	"io":   "https://rdap.identitydigital.services/rdap",
	"dev":  "https://rdap.nominet.uk/dev",
	"app":  "https://rdap.nominet.uk/app",
	"eu":   "https://rdap.eu.org",
	"uk":   "https://rdap.nominet.uk/uk",
	"de":   "https://rdap.denic.de",
	"nl":   "https://rdap.sidn.nl",
	"co":   "https://rdap.nic.co",
	"me":   "https://rdap.nic.me",
	"biz":  "https://rdap.nic.biz",
	"xyz":  "https://rdap.centralnic.com/xyz",
	"top":  "https://rdap.nic.top",
	"site": "https://rdap.centralnic.com/site",
}

type rdapResponse struct {
	Entities []rdapEntity `json:"entities"`
	Events   []rdapEvent  `json:"events"`
}

type rdapEntity struct {
	Roles      []string        `json:"roles"`
	VCardArray json.RawMessage `json:"vcardArray"`
}

type rdapEvent struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
}

// RDAPClient queries per-TLD RDAP endpoints.
type RDAPClient struct {
	client *httpx.Client
	logger *zap.SugaredLogger
}

func NewRDAPClient(logger *zap.SugaredLogger) *RDAPClient {
	return &RDAPClient{
		client: httpx.New("rdap", 30*time.Second, httpx.DefaultConfig()),
		logger: logger.Named("rdap"),
	}
}

// Lookup resolves registrar and expiry via RDAP. found is false when the TLD
// has no endpoint, the query fails, or the answer carries neither field.
func (c *RDAPClient) Lookup(ctx context.Context, dom string) (ports.RegistrationInfo, bool) {
	tld := dom[strings.LastIndex(dom, ".")+1:]
	base, ok := rdapEndpoints[strings.ToLower(tld)]
	if !ok {
		return ports.RegistrationInfo{}, false
	}

	resp, err := c.client.Get(ctx, base+"/domain/"+dom)
	if err != nil {
		c.logger.Warnw("rdap query failed", "domain", dom, "error", err)
		return ports.RegistrationInfo{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.RegistrationInfo{}, false
	}

	var parsed rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warnw("rdap decode failed", "domain", dom, "error", err)
		return ports.RegistrationInfo{}, false
	}

	info := ports.RegistrationInfo{
		Registrar: registrarFromEntities(parsed.Entities),
	}
	for _, ev := range parsed.Events {
		if ev.EventAction != "expiration" {
			continue
		}
		if t, err := parseRDAPDate(ev.EventDate); err == nil {
			info.Expiry = &t
		}
		break
	}

	return info, info.Registrar != "" || info.Expiry != nil
}

// registrarFromEntities walks entities with the registrar role and pulls the
// vCard "fn" text value.
func registrarFromEntities(entities []rdapEntity) string {
	for _, e := range entities {
		if !hasRole(e.Roles, "registrar") {
			continue
		}
		if fn := vcardFN(e.VCardArray); fn != "" {
			return fn
		}
	}
	return ""
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

// vcardFN extracts the formatted name out of a jCard array:
// ["vcard", [["version",{},"text","4.0"], ["fn",{},"text","Registrar Inc"]]].
func vcardFN(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var outer []json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil || len(outer) < 2 {
		return ""
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(outer[1], &props); err != nil {
		return ""
	}
	for _, prop := range props {
		if len(prop) < 4 {
			continue
		}
		var name string
		if err := json.Unmarshal(prop[0], &name); err != nil || name != "fn" {
			continue
		}
		var value string
		if err := json.Unmarshal(prop[3], &value); err == nil {
			return value
		}
	}
	return ""
}

func parseRDAPDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable rdap date %q", s)
}
