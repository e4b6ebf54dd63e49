package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/recon"
)

const (
	// DefaultHistoryLimit is the number of reports listed when no limit is given.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps a single history listing.
	MaxHistoryLimit = 100
)

// reportRow is the scan_reports row layout.
type reportRow struct {
	ID            uuid.UUID      `db:"id"`
	Mode          string         `db:"mode"`
	TargetInput   string         `db:"target_input"`
	Address       string         `db:"address"`
	Hostname      sql.NullString `db:"hostname"`
	StartedAt     time.Time      `db:"started_at"`
	DurationMS    int64          `db:"duration_ms"`
	TotalPorts    int            `db:"total_ports"`
	OpenPorts     int            `db:"open_ports"`
	ClosedPorts   int            `db:"closed_ports"`
	FilteredPorts int            `db:"filtered_ports"`
	ErrorPorts    int            `db:"error_ports"`
	Results       []byte         `db:"results"`
}

// ReportSummary is a stored report without its per-port results.
type ReportSummary struct {
	ID         uuid.UUID     `json:"id"`
	Mode       recon.Mode    `json:"mode"`
	Target     recon.Target  `json:"target"`
	StartedAt  time.Time     `json:"scanTime"`
	DurationMS int64         `json:"durationMs"`
	Summary    recon.Summary `json:"summary"`
}

func newReportRow(report *recon.Report) (*reportRow, error) {
	results := report.Results
	if results == nil {
		results = []recon.ProbeResult{}
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	row := &reportRow{
		ID:            report.ID,
		Mode:          string(report.Mode),
		TargetInput:   report.Target.Input,
		Address:       report.Target.Address.String(),
		StartedAt:     report.StartedAt,
		DurationMS:    report.Duration.Milliseconds(),
		TotalPorts:    report.Summary.Total,
		OpenPorts:     report.Summary.Open,
		ClosedPorts:   report.Summary.Closed,
		FilteredPorts: report.Summary.Filtered,
		ErrorPorts:    report.Summary.Errors,
		Results:       encoded,
	}
	if report.Target.Hostname != "" {
		row.Hostname = sql.NullString{String: report.Target.Hostname, Valid: true}
	}
	return row, nil
}

func (r *reportRow) target() (recon.Target, error) {
	addr, err := netip.ParseAddr(r.Address)
	if err != nil {
		return recon.Target{}, fmt.Errorf("stored address %q: %w", r.Address, err)
	}
	return recon.Target{
		Input:    r.TargetInput,
		Address:  addr,
		Hostname: r.Hostname.String,
	}, nil
}

func (r *reportRow) summary() recon.Summary {
	return recon.Summary{
		Total:    r.TotalPorts,
		Open:     r.OpenPorts,
		Filtered: r.FilteredPorts,
		Closed:   r.ClosedPorts,
		Errors:   r.ErrorPorts,
	}
}

func (r *reportRow) report() (*recon.Report, error) {
	target, err := r.target()
	if err != nil {
		return nil, err
	}

	var results []recon.ProbeResult
	if err := json.Unmarshal(r.Results, &results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}

	return &recon.Report{
		ID:        r.ID,
		Mode:      recon.Mode(r.Mode),
		Target:    target,
		StartedAt: r.StartedAt.UTC(),
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		Results:   results,
		Summary:   r.summary(),
	}, nil
}

// Store persists scan reports.
type Store struct {
	db *DB
}

// NewStore creates a report store on db.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return NewMigrator(s.db.DB).Up(ctx)
}

// SaveReport inserts report.
func (s *Store) SaveReport(ctx context.Context, report *recon.Report) error {
	row, err := newReportRow(report)
	if err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseQuery, "Failed to encode report", "save report", err)
	}

	query := `
		INSERT INTO scan_reports (
			id, mode, target_input, address, hostname, started_at, duration_ms,
			total_ports, open_ports, closed_ports, filtered_ports, error_ports, results
		) VALUES (
			:id, :mode, :target_input, :address, :hostname, :started_at, :duration_ms,
			:total_ports, :open_ports, :closed_ports, :filtered_ports, :error_ports, :results
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return sanitizeDBError("save report", err)
	}
	return nil
}

// GetReport loads the report with id. A missing report yields a NOT_FOUND error.
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*recon.Report, error) {
	query := `
		SELECT id, mode, target_input, host(address) AS address, hostname, started_at, duration_ms,
		       total_ports, open_ports, closed_ports, filtered_ports, error_ports, results
		FROM scan_reports
		WHERE id = $1`

	var row reportRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, sanitizeDBError("get report", err)
	}

	report, err := row.report()
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseQuery, "Stored report is corrupt", "get report", err)
	}
	return report, nil
}

// ListReports returns the most recent reports first. limit is clamped to
// [1, MaxHistoryLimit]; zero or less means DefaultHistoryLimit.
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	query := `
		SELECT id, mode, target_input, host(address) AS address, hostname, started_at, duration_ms,
		       total_ports, open_ports, closed_ports, filtered_ports, error_ports
		FROM scan_reports
		ORDER BY started_at DESC
		LIMIT $1`

	var rows []reportRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, sanitizeDBError("list reports", err)
	}

	summaries := make([]ReportSummary, 0, len(rows))
	for i := range rows {
		target, err := rows[i].target()
		if err != nil {
			return nil, errors.WrapDatabaseError(errors.CodeDatabaseQuery, "Stored report is corrupt", "list reports", err)
		}
		summaries = append(summaries, ReportSummary{
			ID:         rows[i].ID,
			Mode:       recon.Mode(rows[i].Mode),
			Target:     target,
			StartedAt:  rows[i].StartedAt.UTC(),
			DurationMS: rows[i].DurationMS,
			Summary:    rows[i].summary(),
		})
	}
	return summaries, nil
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
