package source

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/config"
	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

const (
	certStreamPingInterval = 30 * time.Second
	certStreamRetryDelay   = 5 * time.Second
)

type certStreamFrame struct {
	MessageType string `json:"message_type"`
	Data        struct {
		LeafCert struct {
			AllDomains []string `json:"all_domains"`
			Subject    struct {
				CN string `json:"CN"`
			} `json:"subject"`
		} `json:"leaf_cert"`
	} `json:"data"`
}

// CertStreamClient keeps one long-lived websocket to the CT aggregator and
// reconnects forever until its context is cancelled.
type CertStreamClient struct {
	url    string
	proxy  config.ProxyConfig
	logger *zap.SugaredLogger
}

func NewCertStreamClient(streamURL string, proxy config.ProxyConfig, logger *zap.SugaredLogger) *CertStreamClient {
	return &CertStreamClient{url: streamURL, proxy: proxy, logger: logger.Named("certstream")}
}

// Run pushes certificate_update frames into updates until ctx is done.
func (c *CertStreamClient) Run(ctx context.Context, updates chan<- ports.CertUpdate) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.streamOnce(ctx, updates); err != nil && ctx.Err() == nil {
			c.logger.Warnw("certstream connection lost, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(certStreamRetryDelay):
		}
	}
}

func (c *CertStreamClient) streamOnce(ctx context.Context, updates chan<- ports.CertUpdate) error {
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPClient: c.httpClient(),
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(4 << 20)

	c.logger.Infow("certstream connected", "url", c.url)

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(certStreamPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.Ping(pingCtx); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame certStreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.MessageType != "certificate_update" {
			continue
		}

		domains := frame.Data.LeafCert.AllDomains
		if cn := frame.Data.LeafCert.Subject.CN; cn != "" {
			domains = append(domains, cn)
		}
		select {
		case updates <- ports.CertUpdate{AllDomains: domains}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// httpClient bypasses the proxy for internal stream hosts; external hosts
// honour HTTP(S)_PROXY.
func (c *CertStreamClient) httpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if IsInternalHost(c.url, c.proxy.NoProxy) {
		transport.Proxy = nil
	}
	return &http.Client{Transport: transport}
}

// IsInternalHost decides whether the stream endpoint lives inside the
// perimeter: RFC 1918 addresses, bare docker service names (no dot), or a
// NO_PROXY match.
func IsInternalHost(rawURL, noProxy string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.IsPrivate() || ip.IsLoopback()
	}
	if host == "localhost" || !strings.Contains(host, ".") {
		return true
	}
	for _, entry := range strings.Split(noProxy, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, strings.TrimPrefix(entry, ".")) {
			return true
		}
	}
	return false
}
