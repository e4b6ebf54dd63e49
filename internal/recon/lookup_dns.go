package recon

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Lookup backends.
const (
	BackendSystem = "system"
	BackendDNS    = "dns"
)

const (
	defaultResolvConf = "/etc/resolv.conf"
	defaultDNSPort    = "53"
)

// ResolverConfig selects and configures the forward lookup backend.
type ResolverConfig struct {
	// Backend is "system" (OS resolver) or "dns" (direct A query).
	Backend string `yaml:"backend" json:"backend" mapstructure:"backend" validate:"omitempty,oneof=system dns"`
	// Nameserver is host or host:port for the dns backend. Empty means the
	// first server listed in /etc/resolv.conf.
	Nameserver string `yaml:"nameserver" json:"nameserver" mapstructure:"nameserver"`
	// Net is the dns transport, "udp" or "tcp".
	Net string `yaml:"net" json:"net" mapstructure:"net" validate:"omitempty,oneof=udp tcp"`
}

// NewLookup builds the HostLookup described by cfg and returns it with the
// backend name used in metrics.
func NewLookup(cfg ResolverConfig, timeout time.Duration) (HostLookup, string, error) {
	switch cfg.Backend {
	case "", BackendSystem:
		return &SystemLookup{}, BackendSystem, nil
	case BackendDNS:
		server := cfg.Nameserver
		if server == "" {
			conf, err := dns.ClientConfigFromFile(defaultResolvConf)
			if err != nil {
				return nil, "", fmt.Errorf("failed to read %s: %w", defaultResolvConf, err)
			}
			if len(conf.Servers) == 0 {
				return nil, "", fmt.Errorf("no nameservers configured in %s", defaultResolvConf)
			}
			server = net.JoinHostPort(conf.Servers[0], conf.Port)
		}
		return NewDNSLookup(server, cfg.Net, timeout), BackendDNS, nil
	default:
		return nil, "", fmt.Errorf("unknown resolver backend %q", cfg.Backend)
	}
}

// DNSLookup sends a single A query to one nameserver.
type DNSLookup struct {
	server string
	client *dns.Client
}

// NewDNSLookup creates a DNSLookup for server (host or host:port).
func NewDNSLookup(server, network string, timeout time.Duration) *DNSLookup {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, defaultDNSPort)
	}
	if network == "" {
		network = "udp"
	}
	return &DNSLookup{
		server: server,
		client: &dns.Client{Net: network, Timeout: timeout},
	}
}

// LookupIPv4 implements HostLookup. Only A records in the answer section are
// returned, in the order the server sent them.
func (l *DNSLookup) LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	in, _, err := l.client.ExchangeContext(ctx, msg, l.server)
	if err != nil {
		return nil, fmt.Errorf("query %s via %s: %w", host, l.server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s via %s: %s", host, l.server, dns.RcodeToString[in.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range in.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A records for %s", host)
	}
	return addrs, nil
}
