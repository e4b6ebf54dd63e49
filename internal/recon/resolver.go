package recon

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/metrics"
)

const maxTargetLength = 253

var (
	// Dot-separated labels of letters, digits and hyphens, no label starting
	// or ending with a hyphen, each label at most 63 characters.
	hostnamePattern = regexp.MustCompile(
		`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	numericDottedPattern = regexp.MustCompile(`^[0-9.]+$`)
)

// HostLookup performs a forward IPv4 address lookup for a hostname.
type HostLookup interface {
	LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error)
}

// SystemLookup resolves through the operating system resolver.
type SystemLookup struct {
	Resolver *net.Resolver
}

// LookupIPv4 implements HostLookup.
func (l *SystemLookup) LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error) {
	r := l.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	return r.LookupNetIP(ctx, "ip4", host)
}

// Resolver turns a raw target string into a Target. It performs at most one
// lookup per call and keeps nothing between calls.
type Resolver struct {
	lookup  HostLookup
	backend string
	timeout time.Duration
	metrics *metrics.PrometheusMetrics
}

// NewResolver creates a resolver using lookup for hostnames. backend names the
// lookup implementation in metrics.
func NewResolver(lookup HostLookup, backend string, timeout time.Duration, m *metrics.PrometheusMetrics) *Resolver {
	if lookup == nil {
		lookup = &SystemLookup{}
		backend = BackendSystem
	}
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Resolver{
		lookup:  lookup,
		backend: backend,
		timeout: timeout,
		metrics: m,
	}
}

// Resolve validates raw and resolves it to an IPv4 address.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Target, error) {
	input := strings.TrimSpace(raw)
	if input == "" || len(input) > maxTargetLength {
		return Target{}, errors.ErrInvalidTarget(raw)
	}

	if numericDottedPattern.MatchString(input) {
		addr, ok := parseDottedQuad(input)
		if !ok {
			return Target{}, errors.ErrInvalidTarget(input)
		}
		return Target{Input: input, Address: addr}, nil
	}

	if !hostnamePattern.MatchString(input) {
		return Target{}, errors.ErrInvalidTarget(input)
	}

	addr, err := r.lookupFirst(ctx, input)
	if err != nil {
		return Target{}, err
	}
	return Target{Input: input, Address: addr, Hostname: input}, nil
}

func (r *Resolver) lookupFirst(ctx context.Context, host string) (netip.Addr, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.lookup.LookupIPv4(lookupCtx, host)
	if ctx.Err() != nil {
		r.metrics.RecordResolution(r.backend, false)
		return netip.Addr{}, errors.ErrScanCancelled(host, ctx.Err())
	}
	if err != nil {
		r.metrics.RecordResolution(r.backend, false)
		return netip.Addr{}, errors.ErrResolution(host, err)
	}

	for _, addr := range addrs {
		addr = addr.Unmap()
		if addr.Is4() {
			r.metrics.RecordResolution(r.backend, true)
			return addr, nil
		}
	}

	r.metrics.RecordResolution(r.backend, false)
	return netip.Addr{}, errors.ErrResolution(host, fmt.Errorf("no IPv4 address found for %s", host))
}

// parseDottedQuad accepts exactly four decimal octets in [0,255] without
// leading zeros, so the canonical form of the address equals the input.
func parseDottedQuad(s string) (netip.Addr, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return netip.Addr{}, false
	}

	var octets [4]byte
	for i, part := range parts {
		if len(part) == 0 || len(part) > 3 {
			return netip.Addr{}, false
		}
		if len(part) > 1 && part[0] == '0' {
			return netip.Addr{}, false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return netip.Addr{}, false
		}
		octets[i] = byte(n)
	}
	return netip.AddrFrom4(octets), true
}
