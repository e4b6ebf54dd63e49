package recon

import (
	"github.com/cyberdash/reconengine/internal/errors"
)

// CustomService labels caller-supplied ports.
const CustomService = "Custom"

// referencePorts is the default port table, probed in this order.
var referencePorts = []PortSpec{
	{21, "FTP"},
	{22, "SSH"},
	{23, "Telnet"},
	{25, "SMTP"},
	{53, "DNS"},
	{80, "HTTP"},
	{110, "POP3"},
	{143, "IMAP"},
	{443, "HTTPS"},
	{445, "SMB"},
	{587, "SMTP (TLS)"},
	{993, "IMAP (SSL)"},
	{995, "POP3 (SSL)"},
	{3306, "MySQL"},
	{3389, "RDP"},
	{5432, "PostgreSQL"},
	{5900, "VNC"},
	{8080, "HTTP-Proxy"},
	{8443, "HTTPS-Alt"},
	{27017, "MongoDB"},
}

var referenceIndex = func() map[uint16]string {
	idx := make(map[uint16]string, len(referencePorts))
	for _, p := range referencePorts {
		idx[p.Port] = p.Service
	}
	return idx
}()

// ReferencePorts returns a copy of the default port table.
func ReferencePorts() []PortSpec {
	out := make([]PortSpec, len(referencePorts))
	copy(out, referencePorts)
	return out
}

// ServiceName returns the reference label for port, or "" if it has none.
func ServiceName(port uint16) string {
	return referenceIndex[port]
}

// BuildPortSet returns the ordered ports for a full scan. With no custom
// ports it returns the reference table. Custom ports are validated, labeled
// Custom and deduplicated keeping the first occurrence. More than maxPorts
// resulting ports rejects the whole request.
func BuildPortSet(custom []int, maxPorts int) ([]PortSpec, error) {
	if len(custom) == 0 {
		specs := ReferencePorts()
		if len(specs) > maxPorts {
			return nil, errors.ErrPortLimit(len(specs), maxPorts)
		}
		return specs, nil
	}

	seen := make(map[int]struct{}, len(custom))
	specs := make([]PortSpec, 0, len(custom))
	for _, p := range custom {
		if p < 1 || p > maxPortNumber {
			return nil, errors.ErrPortValue(p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		specs = append(specs, PortSpec{Port: uint16(p), Service: CustomService})
	}

	if len(specs) > maxPorts {
		return nil, errors.ErrPortLimit(len(specs), maxPorts)
	}
	return specs, nil
}

// QuickPortSet returns the fixed liveness ports labeled from the reference table.
func QuickPortSet(ports []uint16) []PortSpec {
	specs := make([]PortSpec, len(ports))
	for i, p := range ports {
		specs[i] = PortSpec{Port: p, Service: ServiceName(p)}
	}
	return specs
}
