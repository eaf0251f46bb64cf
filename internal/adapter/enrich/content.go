package enrich

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/glaslos/tlsh"
	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/adapter/httpx"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

// ContentChangeThreshold: a length-weighted TLSH distance above this value
// marks the page as changed.
const ContentChangeThreshold = 160

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// WebProber fetches a site body over HTTPS (HTTP fallback) and computes its
// TLSH digest.
type WebProber struct {
	client *httpx.Client
	logger *zap.SugaredLogger
}

func NewWebProber(logger *zap.SugaredLogger) *WebProber {
	return &WebProber{
		client: httpx.New("web-content", 10*time.Second, httpx.Config{
			EnableCircuitBreaker: false,
			MaxRetries:           0,
		}),
		logger: logger.Named("web_content"),
	}
}

func (p *WebProber) Probe(ctx context.Context, dom string) (ports.ContentProbe, error) {
	resp, err := p.fetch(ctx, "https://"+dom)
	if err != nil {
		resp, err = p.fetch(ctx, "http://"+dom)
	}
	if err != nil {
		return ports.ContentProbe{}, fmt.Errorf("failed to fetch %s: %w", dom, err)
	}
	defer resp.Body.Close()

	probe := ports.ContentProbe{Status: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return probe, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return probe, fmt.Errorf("failed to read body of %s: %w", dom, err)
	}

	hash, err := tlsh.HashBytes(body)
	if err != nil {
		// Bodies below the TLSH minimum size hash to nothing; treat as
		// no digest rather than a failure.
		p.logger.Debugw("tlsh digest unavailable", "domain", dom, "error", err)
		return probe, nil
	}
	probe.Digest = hash.String()
	return probe, nil
}

func (p *WebProber) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Diff returns the length-weighted distance between two stored digests.
func (p *WebProber) Diff(oldDigest, newDigest string) (int, error) {
	oldHash, err := tlsh.ParseStringToTlsh(oldDigest)
	if err != nil {
		return 0, fmt.Errorf("bad stored digest: %w", err)
	}
	newHash, err := tlsh.ParseStringToTlsh(newDigest)
	if err != nil {
		return 0, fmt.Errorf("bad new digest: %w", err)
	}
	return oldHash.Diff(newHash), nil
}

// CertChecker reads the notAfter date off the peer certificate of
// domain:443.
type CertChecker struct {
	timeout time.Duration
}

func NewCertChecker() *CertChecker {
	return &CertChecker{timeout: 10 * time.Second}
}

func (c *CertChecker) Expiry(ctx context.Context, dom string) (time.Time, bool) {
	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", dom+":443", &tls.Config{ServerName: dom})
	if err != nil {
		return time.Time{}, false
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return time.Time{}, false
	}
	return certs[0].NotAfter, true
}
