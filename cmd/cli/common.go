package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cyberdash/reconengine/internal/config"
	"github.com/cyberdash/reconengine/internal/db"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
	"github.com/cyberdash/reconengine/internal/recon"
)

// maxRangeSpan bounds a single "a-b" range so that a typo cannot expand
// into tens of thousands of ints before the engine rejects the list.
const maxRangeSpan = 65535

// newEngine builds a scan engine from cfg with the configured resolver backend.
func newEngine(cfg *config.Config, pm *metrics.PrometheusMetrics) (*recon.Engine, error) {
	lookup, backend, err := recon.NewLookup(cfg.Resolver, cfg.Engine.ResolveTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to configure resolver: %w", err)
	}

	return recon.New(cfg.Engine,
		recon.WithLookup(lookup, backend),
		recon.WithLogger(logging.Default()),
		recon.WithMetrics(pm),
	)
}

// openStore connects to the history database and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	if !cfg.Database.Enabled {
		return nil, fmt.Errorf("report history is disabled (set database.enabled)")
	}

	database, err := db.ConnectAndMigrate(ctx, &cfg.Database.Config)
	if err != nil {
		return nil, err
	}
	return db.NewStore(database), nil
}

// parsePortList parses "22,80,8000-8010" into a port list. Values are not
// range-checked here; the engine rejects invalid ports with a typed error.
func parsePortList(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty port in list %q", spec)
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			port, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q", part)
			}
			ports = append(ports, port)
			continue
		}

		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", lo)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", hi)
		}
		if start > end {
			return nil, fmt.Errorf("invalid range %q: start is greater than end", part)
		}
		if end-start > maxRangeSpan {
			return nil, fmt.Errorf("invalid range %q: too wide", part)
		}
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
	}
	return ports, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// hostnameOrDash renders an empty hostname as "-".
func hostnameOrDash(t recon.Target) string {
	if t.Hostname == "" {
		return "-"
	}
	return t.Hostname
}
