package enrich

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

const whoisBaseURL = "http://www.whois-raynette.fr/whois/"

// Registrar patterns in priority order; the first capture wins.
var whoisRegistrarPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Registrar:\s*([^\n<]+)`),
	regexp.MustCompile(`(?i)Registrar Name:\s*([^\n<]+)`),
	regexp.MustCompile(`(?i)Sponsoring Registrar:\s*([^\n<]+)`),
	regexp.MustCompile(`(?i)registrar:\s*([^\n<]+)`),
}

var whoisExpiryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Registry Expiry Date:\s*([0-9TZ:\.\-\+]+)`),
	regexp.MustCompile(`(?i)Expiry Date:\s*([0-9TZ:\.\-\+/]+)`),
	regexp.MustCompile(`(?i)Expiration Date:\s*([0-9TZ:\.\-\+/]+)`),
	regexp.MustCompile(`(?i)paid-till:\s*([0-9TZ:\.\-\+/]+)`),
	regexp.MustCompile(`(?i)expires:\s*([0-9TZ:\.\-\+/]+)`),
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-Jan-2006",
}

// WHOISClient screen-scrapes the fallback WHOIS service. The upstream is
// rate-limited to one request per second.
type WHOISClient struct {
	client  *httpx.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

func NewWHOISClient(logger *zap.SugaredLogger) *WHOISClient {
	return &WHOISClient{
		client:  httpx.New("whois", 30*time.Second, httpx.DefaultConfig()),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger.Named("whois"),
	}
}

func (c *WHOISClient) Lookup(ctx context.Context, dom string) (ports.RegistrationInfo, bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.RegistrationInfo{}, false
	}

	resp, err := c.client.Get(ctx, whoisBaseURL+dom)
	if err != nil {
		c.logger.Warnw("whois query failed", "domain", dom, "error", err)
		return ports.RegistrationInfo{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.RegistrationInfo{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.RegistrationInfo{}, false
	}

	info := parseWHOISBody(string(body))
	return info, info.Registrar != "" || info.Expiry != nil
}

func parseWHOISBody(body string) ports.RegistrationInfo {
	var info ports.RegistrationInfo

	for _, re := range whoisRegistrarPatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			info.Registrar = trimWhoisValue(m[1])
			break
		}
	}

	for _, re := range whoisExpiryPatterns {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		raw := trimWhoisValue(m[1])
		for _, layout := range whoisDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				info.Expiry = &t
				break
			}
		}
		if info.Expiry != nil {
			break
		}
	}
	return info
}

func trimWhoisValue(s string) string {
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\r' || s[len(s)-1] == '.') {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

// Enricher chains RDAP then WHOIS; failure of both yields found=false, which
// the pipelines treat as "unchanged", never as an error.
type Enricher struct {
	rdap  ports.DomainEnricher
	whois ports.DomainEnricher
}

func NewEnricher(rdap, whois ports.DomainEnricher) *Enricher {
	return &Enricher{rdap: rdap, whois: whois}
}

func (e *Enricher) Lookup(ctx context.Context, dom string) (ports.RegistrationInfo, bool) {
	if info, ok := e.rdap.Lookup(ctx, dom); ok {
		return info, true
	}
	return e.whois.Lookup(ctx, dom)
}
