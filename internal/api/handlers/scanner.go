package handlers

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cyberdash/reconengine/internal/api/middleware"
	"github.com/cyberdash/reconengine/internal/db"
	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/recon"
	"github.com/cyberdash/reconengine/internal/slots"
)

//go:generate mockgen -destination=mocks/mock_handlers.go -package=mocks . Scanner,ReportStore,DatabasePinger

// Scanner runs scans. *recon.Engine satisfies it.
type Scanner interface {
	FullScan(ctx context.Context, target string, ports []int) (*recon.Report, error)
	QuickScan(ctx context.Context, target string) (*recon.LivenessResult, error)
}

// ReportStore persists finished scans. *db.Store satisfies it.
type ReportStore interface {
	SaveReport(ctx context.Context, report *recon.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*recon.Report, error)
	ListReports(ctx context.Context, limit int) ([]db.ReportSummary, error)
}

// saveTimeout bounds the history write that follows a scan.
const saveTimeout = 5 * time.Second

// ScanRequest is the body of POST /scanner/scan.
type ScanRequest struct {
	Host  string `json:"host" validate:"required,max=253"`
	Ports []int  `json:"ports,omitempty"`
}

// QuickScanRequest is the body of POST /scanner/quick.
type QuickScanRequest struct {
	Host string `json:"host" validate:"required,max=253"`
}

// QuickScanResponse is the data of a liveness check.
type QuickScanResponse struct {
	Target    recon.Target `json:"target"`
	IsUp      bool         `json:"isUp"`
	OpenPorts int          `json:"openPorts"`
}

// ScannerHandler serves the scanner endpoints.
type ScannerHandler struct {
	scanner        Scanner
	store          ReportStore
	slots          *slots.Limiter
	logger         *logging.Logger
	validator      *validator.Validate
	scanTimeout    time.Duration
	maxRequestSize int64
}

// NewScannerHandler creates a scanner handler. store may be nil, in which
// case nothing is persisted and the history endpoints answer 404. limiter may
// be nil for no concurrency cap.
func NewScannerHandler(
	scanner Scanner,
	store ReportStore,
	limiter *slots.Limiter,
	logger *logging.Logger,
	scanTimeout time.Duration,
	maxRequestSize int64,
) *ScannerHandler {
	if logger == nil {
		logger = logging.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &ScannerHandler{
		scanner:        scanner,
		store:          store,
		slots:          limiter,
		logger:         logger.WithComponent("api.scanner"),
		validator:      v,
		scanTimeout:    scanTimeout,
		maxRequestSize: maxRequestSize,
	}
}

// scanContext derives the per-request scan deadline.
func (h *ScannerHandler) scanContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.scanTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.scanTimeout)
}

// withSlot runs fn while holding a scan slot. Waiting for a slot counts
// against the request deadline.
func (h *ScannerHandler) withSlot(ctx context.Context, target string, fn func() error) error {
	if h.slots == nil {
		return fn()
	}

	id := uuid.NewString()
	if err := h.slots.Acquire(ctx, id); err != nil {
		h.logger.Warn("No scan slot available", "target", target, "error", err)
		return errors.ErrScanCancelled(target, err)
	}
	defer h.slots.Release(id)

	return fn()
}

// Scan handles POST /api/v1/scanner/scan.
func (h *ScannerHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSON(r, &req, h.validator, h.maxRequestSize); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.scanContext(r)
	defer cancel()

	var report *recon.Report
	err := h.withSlot(ctx, req.Host, func() (err error) {
		report, err = h.scanner.FullScan(ctx, req.Host, req.Ports)
		return err
	})
	if err != nil {
		h.logger.ErrorScan("Scan request failed", req.Host, err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
		writeError(w, r, err)
		return
	}

	h.saveReport(r, report)
	writeSuccess(w, r, report)
}

// QuickScan handles POST /api/v1/scanner/quick.
func (h *ScannerHandler) QuickScan(w http.ResponseWriter, r *http.Request) {
	var req QuickScanRequest
	if err := parseJSON(r, &req, h.validator, h.maxRequestSize); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.scanContext(r)
	defer cancel()

	var result *recon.LivenessResult
	err := h.withSlot(ctx, req.Host, func() (err error) {
		result, err = h.scanner.QuickScan(ctx, req.Host)
		return err
	})
	if err != nil {
		h.logger.ErrorScan("Quick scan request failed", req.Host, err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, QuickScanResponse{
		Target:    result.Target,
		IsUp:      result.IsUp,
		OpenPorts: result.OpenPortCount,
	})
}

// Ports handles GET /api/v1/scanner/ports.
func (h *ScannerHandler) Ports(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, recon.ReferencePorts())
}

// History handles GET /api/v1/scanner/history.
func (h *ScannerHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeFailure(w, r, http.StatusNotFound, errors.CodeNotFound, "Report history is disabled")
		return
	}

	limit, err := getQueryParamInt(r, "limit", db.DefaultHistoryLimit)
	if err != nil || limit < 1 {
		writeFailure(w, r, http.StatusBadRequest, errors.CodeValidation, "limit must be a positive integer")
		return
	}

	reports, err := h.store.ListReports(r.Context(), limit)
	if err != nil {
		h.logger.ErrorDatabase("Failed to list reports", err)
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, reports)
}

// Report handles GET /api/v1/scanner/history/{id}.
func (h *ScannerHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeFailure(w, r, http.StatusNotFound, errors.CodeNotFound, "Report history is disabled")
		return
	}

	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeFailure(w, r, http.StatusBadRequest, errors.CodeValidation, err.Error())
		return
	}

	report, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		if errors.IsNotFound(err) {
			writeFailure(w, r, http.StatusNotFound, errors.CodeNotFound, "Report not found")
			return
		}
		h.logger.ErrorDatabase("Failed to load report", err, "scan_id", id.String())
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, report)
}

// saveReport stores report in the history. Failures are logged only.
func (h *ScannerHandler) saveReport(r *http.Request, report *recon.Report) {
	if h.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), saveTimeout)
	defer cancel()

	if err := h.store.SaveReport(ctx, report); err != nil {
		h.logger.ErrorDatabase("Failed to save report", err,
			"scan_id", report.ID.String(),
			"request_id", middleware.RequestIDFromContext(r.Context()))
	}
}
