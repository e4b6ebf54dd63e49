package recon

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberdash/reconengine/internal/errors"
)

// startDNSServer runs an in-process nameserver on a random loopback UDP port.
func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		Handler:           handler,
		NotifyStartedFunc: func() { close(started) },
	}
	go func() {
		_ = server.ActivateAndServe()
	}()
	<-started
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	return pc.LocalAddr().String()
}

func aRecord(name, ip string) dns.RR {
	return &dns.A{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP(ip).To4(),
	}
}

func testZone(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	q := r.Question[0]
	switch q.Name {
	case "app.example.test.":
		m.Answer = append(m.Answer,
			aRecord(q.Name, "192.0.2.10"),
			aRecord(q.Name, "192.0.2.11"))
	case "alias.example.test.":
		m.Answer = append(m.Answer,
			&dns.CNAME{
				Hdr:    dns.RR_Header{Name: q.Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60},
				Target: "app.example.test.",
			},
			aRecord("app.example.test.", "192.0.2.10"))
	case "empty.example.test.":
		// NOERROR with no answers
	case "broken.example.test.":
		m.SetRcode(r, dns.RcodeServerFailure)
	default:
		m.SetRcode(r, dns.RcodeNameError)
	}

	_ = w.WriteMsg(m)
}

func TestDNSLookup_ReturnsARecordsInOrder(t *testing.T) {
	server := startDNSServer(t, testZone)
	lookup := NewDNSLookup(server, "udp", time.Second)

	addrs, err := lookup.LookupIPv4(context.Background(), "app.example.test")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("192.0.2.10"),
		netip.MustParseAddr("192.0.2.11"),
	}, addrs)
}

func TestDNSLookup_SkipsNonARecords(t *testing.T) {
	server := startDNSServer(t, testZone)
	lookup := NewDNSLookup(server, "", time.Second)

	addrs, err := lookup.LookupIPv4(context.Background(), "alias.example.test")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.0.2.10")}, addrs)
}

func TestDNSLookup_Failures(t *testing.T) {
	server := startDNSServer(t, testZone)
	lookup := NewDNSLookup(server, "udp", time.Second)

	tests := []struct {
		host    string
		wantMsg string
	}{
		{"missing.example.test", "NXDOMAIN"},
		{"broken.example.test", "SERVFAIL"},
		{"empty.example.test", "no A records"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			_, err := lookup.LookupIPv4(context.Background(), tt.host)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDNSLookup_ThroughResolver(t *testing.T) {
	server := startDNSServer(t, testZone)
	lookup, backend, err := NewLookup(ResolverConfig{Backend: BackendDNS, Nameserver: server}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, BackendDNS, backend)

	resolver := NewResolver(lookup, backend, time.Second, nil)

	target, err := resolver.Resolve(context.Background(), "app.example.test")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", target.Address.String())
	assert.Equal(t, "app.example.test", target.Hostname)

	_, err = resolver.Resolve(context.Background(), "missing.example.test")
	assert.ErrorIs(t, err, errors.ErrResolutionFailed)
}

func TestNewDNSLookup_AddsDefaultPort(t *testing.T) {
	lookup := NewDNSLookup("192.0.2.53", "", time.Second)
	assert.Equal(t, "192.0.2.53:53", lookup.server)
	assert.Equal(t, "udp", lookup.client.Net)

	lookup = NewDNSLookup("192.0.2.53:5353", "tcp", time.Second)
	assert.Equal(t, "192.0.2.53:5353", lookup.server)
	assert.Equal(t, "tcp", lookup.client.Net)
}

func TestNewLookup(t *testing.T) {
	lookup, backend, err := NewLookup(ResolverConfig{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, BackendSystem, backend)
	assert.IsType(t, &SystemLookup{}, lookup)

	_, _, err = NewLookup(ResolverConfig{Backend: "carrier-pigeon"}, time.Second)
	assert.Error(t, err)
}
