package recon

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
)

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober performs single timed connect attempts. It holds no per-probe state
// and is safe for concurrent use.
type Prober struct {
	dialer  Dialer
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
}

// NewProber creates a prober. A nil dialer uses a plain net.Dialer.
func NewProber(dialer Dialer, logger *logging.Logger, m *metrics.PrometheusMetrics) *Prober {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Prober{
		dialer:  dialer,
		logger:  logger,
		metrics: m,
	}
}

// Probe makes one connect attempt to addr:spec.Port bounded by timeout and
// classifies the outcome. No application data is exchanged and the attempt
// is never retried.
func (p *Prober) Probe(ctx context.Context, addr netip.Addr, spec PortSpec, timeout time.Duration) ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := net.JoinHostPort(addr.String(), strconv.Itoa(int(spec.Port)))
	start := time.Now()
	conn, err := p.dialer.DialContext(probeCtx, "tcp", address)
	rtt := time.Since(start)

	result := ProbeResult{
		Port:    spec.Port,
		Service: spec.Service,
		RTT:     rtt,
	}

	if err == nil {
		result.Status = StatusOpen
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.DebugProbe("Failed to close probe connection", address, spec.Port, "error", closeErr)
		}
	} else {
		result.Status, result.Reason = classifyDialError(err, probeCtx.Err() == context.DeadlineExceeded)
	}

	p.metrics.RecordProbe(string(result.Status), rtt)
	p.logger.DebugProbe("Probe finished", address, spec.Port,
		"status", result.Status,
		"rtt", rtt,
		"reason", result.Reason)

	return result
}
