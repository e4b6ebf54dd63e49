package recon

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Status is the observable classification of a probed port.
type Status string

const (
	// StatusOpen means the TCP handshake completed.
	StatusOpen Status = "open"
	// StatusClosed means the remote actively refused the connection.
	StatusClosed Status = "closed"
	// StatusFiltered means the attempt timed out or the host/route was unreachable.
	StatusFiltered Status = "filtered"
	// StatusError means any other local or network failure.
	StatusError Status = "error"
)

// Mode identifies which engine operation produced a report.
type Mode string

const (
	ModeFull  Mode = "full"
	ModeQuick Mode = "quick"
)

// Target is a validated, resolved scan target. It is created once per scan
// request and never mutated afterwards.
type Target struct {
	// Input is the raw string supplied by the caller, trimmed.
	Input string
	// Address is the IPv4 address every probe connects to.
	Address netip.Addr
	// Hostname is the original input when it was resolved through a lookup,
	// empty for literal addresses.
	Hostname string
}

// MarshalJSON renders the target the way the dashboard expects it:
// {"ip": "...", "hostname": null|"..."}.
func (t Target) MarshalJSON() ([]byte, error) {
	var hostname *string
	if t.Hostname != "" {
		h := t.Hostname
		hostname = &h
	}
	return json.Marshal(struct {
		IP       string  `json:"ip"`
		Hostname *string `json:"hostname"`
	}{
		IP:       t.Address.String(),
		Hostname: hostname,
	})
}

// PortSpec is one port to probe together with its service label.
type PortSpec struct {
	Port    uint16 `json:"port"`
	Service string `json:"service"`
}

// ProbeResult is the outcome of one connect attempt.
type ProbeResult struct {
	Port    uint16        `json:"port"`
	Status  Status        `json:"status"`
	Service string        `json:"service"`
	RTT     time.Duration `json:"-"`
	// Reason describes an Error status; empty otherwise.
	Reason string `json:"reason,omitempty"`
}

// Summary holds the per-status counts of a report.
type Summary struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	Filtered int `json:"filtered"`
	Closed   int `json:"closed"`
	Errors   int `json:"errors"`
}

// Report is the complete result of a scan. Results are in requested order.
type Report struct {
	ID        uuid.UUID     `json:"id"`
	Mode      Mode          `json:"mode"`
	Target    Target        `json:"target"`
	StartedAt time.Time     `json:"scanTime"`
	Duration  time.Duration `json:"-"`
	Results   []ProbeResult `json:"results"`
	Summary   Summary       `json:"summary"`
}

// LivenessResult is returned by a quick liveness check.
type LivenessResult struct {
	Target        Target        `json:"target"`
	IsUp          bool          `json:"isUp"`
	OpenPortCount int           `json:"openPorts"`
	Results       []ProbeResult `json:"results"`
}
