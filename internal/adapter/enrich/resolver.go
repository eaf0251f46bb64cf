package enrich

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

const dnsTimeout = 5 * time.Second

// DNSResolver queries A and MX records through one configured resolver.
type DNSResolver struct {
	client *dns.Client
	server string
	logger *zap.SugaredLogger
}

// NewDNSResolver uses server ("host:port") when given, otherwise the first
// nameserver from /etc/resolv.conf.
func NewDNSResolver(server string, logger *zap.SugaredLogger) *DNSResolver {
	if server == "" {
		if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
			server = net.JoinHostPort(conf.Servers[0], conf.Port)
		} else {
			server = "8.8.8.8:53"
		}
	}
	return &DNSResolver{
		client: &dns.Client{Timeout: dnsTimeout},
		server: server,
		logger: logger.Named("dns"),
	}
}

// Resolve gathers the records site monitoring diffs on. NXDOMAIN and
// timeouts yield empty slots, not errors.
func (r *DNSResolver) Resolve(ctx context.Context, dom string) (ports.HostRecords, error) {
	var rec ports.HostRecords

	rec.IPs = r.lookupA(ctx, dom)
	rec.MX = r.lookupMX(ctx, dom)
	if mailIPs := r.lookupA(ctx, "mail."+dom); len(mailIPs) > 0 {
		rec.MailIP = mailIPs[0]
	}
	return rec, nil
}

// lookupA returns A records sorted by numeric IP ascending.
func (r *DNSResolver) lookupA(ctx context.Context, host string) []string {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	reply, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil || reply == nil {
		r.logger.Debugw("A lookup failed", "host", host, "error", err)
		return nil
	}

	var ips []net.IP
	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A)
		}
	}
	sort.Slice(ips, func(i, j int) bool {
		return ipLess(ips[i], ips[j])
	})

	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}

// lookupMX returns textual "pref host" records, sorted.
func (r *DNSResolver) lookupMX(ctx context.Context, host string) []string {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeMX)

	reply, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil || reply == nil {
		r.logger.Debugw("MX lookup failed", "host", host, "error", err)
		return nil
	}

	var out []string
	for _, rr := range reply.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			out = append(out, fmt.Sprintf("%d %s", mx.Preference, mx.Mx))
		}
	}
	sort.Strings(out)
	return out
}

func ipLess(a, b net.IP) bool {
	a4, b4 := a.To4(), b.To4()
	if a4 == nil || b4 == nil {
		return a.String() < b.String()
	}
	for i := 0; i < 4; i++ {
		if a4[i] != b4[i] {
			return a4[i] < b4[i]
		}
	}
	return false
}

// SameSubnet16 reports whether both IPv4 addresses sit in the same /16.
// Either side missing counts as a change.
func SameSubnet16(a, b string) bool {
	ipA := net.ParseIP(a)
	ipB := net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return false
	}
	a4, b4 := ipA.To4(), ipB.To4()
	if a4 == nil || b4 == nil {
		return ipA.Equal(ipB)
	}
	return a4[0] == b4[0] && a4[1] == b4[1]
}
