package detectors

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// DNSResolver wraps raw DNS queries for the detectors and the
// submission precheck. UDP first, TCP on truncation.
type DNSResolver struct {
	servers   []string
	udpClient *mdns.Client
	tcpClient *mdns.Client
	logger    *logrus.Logger
}

func NewDNSResolver(servers []string, timeout time.Duration, logger *logrus.Logger) *DNSResolver {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if len(servers) == 0 {
		servers = systemResolvers()
	}
	udp := &mdns.Client{Net: "udp", Timeout: timeout, UDPSize: 1232}
	tcp := &mdns.Client{Net: "tcp", Timeout: timeout}
	return &DNSResolver{servers: servers, udpClient: udp, tcpClient: tcp, logger: logger}
}

func (r *DNSResolver) exchange(ctx context.Context, msg *mdns.Msg) (*mdns.Msg, error) {
	var lastErr error
	for _, server := range r.servers {
		if !strings.Contains(server, ":") {
			server = net.JoinHostPort(server, "53")
		}
		resp, _, err := r.udpClient.ExchangeContext(ctx, msg, server)
		if err == nil && resp != nil && resp.Truncated {
			resp, _, err = r.tcpClient.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if resp == nil {
			lastErr = fmt.Errorf("nil DNS response from %s", server)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("all DNS servers failed: %w", lastErr)
}

func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) ([]mdns.RR, error) {
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(1232, true)
	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != mdns.RcodeSuccess {
		return nil, fmt.Errorf("DNS error for %s: %s", name, mdns.RcodeToString[resp.Rcode])
	}
	return resp.Answer, nil
}

// TXT returns the joined strings of every TXT record at name.
func (r *DNSResolver) TXT(ctx context.Context, name string) ([]string, error) {
	answers, err := r.query(ctx, name, mdns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range answers {
		if txt, ok := rr.(*mdns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}

// HasDNSKEY reports whether the zone publishes DNSKEY records, the
// visible marker of DNSSEC signing.
func (r *DNSResolver) HasDNSKEY(ctx context.Context, domain string) (bool, error) {
	answers, err := r.query(ctx, domain, mdns.TypeDNSKEY)
	if err != nil {
		return false, err
	}
	for _, rr := range answers {
		if _, ok := rr.(*mdns.DNSKEY); ok {
			return true, nil
		}
	}
	return false, nil
}

// HostExists reports whether the host resolves to at least one address.
func (r *DNSResolver) HostExists(ctx context.Context, host string) bool {
	for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
		answers, err := r.query(ctx, host, qtype)
		if err != nil {
			continue
		}
		if len(answers) > 0 {
			return true
		}
	}
	return false
}

func systemResolvers() []string {
	cfg, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8", "1.1.1.1"}
	}
	return cfg.Servers
}
