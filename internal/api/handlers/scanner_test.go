package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cyberdash/reconengine/internal/api/handlers/mocks"
	"github.com/cyberdash/reconengine/internal/db"
	"github.com/cyberdash/reconengine/internal/errors"
	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/recon"
	"github.com/cyberdash/reconengine/internal/slots"
)

func newTestScannerHandler(scanner Scanner, store ReportStore) *ScannerHandler {
	return NewScannerHandler(scanner, store, nil, logging.NewDiscard(), time.Second, 1024)
}

func sampleReport() *recon.Report {
	return &recon.Report{
		ID:   uuid.MustParse("6f1c1f36-6a4e-4d59-9b1e-0c3f2b0a7d11"),
		Mode: recon.ModeFull,
		Target: recon.Target{
			Input:   "192.0.2.10",
			Address: netip.MustParseAddr("192.0.2.10"),
		},
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  250 * time.Millisecond,
		Results: []recon.ProbeResult{
			{Port: 22, Status: recon.StatusOpen, Service: "SSH"},
			{Port: 80, Status: recon.StatusClosed, Service: "HTTP"},
		},
		Summary: recon.Summary{Total: 2, Open: 1, Closed: 1},
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestScannerHandler_Scan(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(scanner *mocks.MockScanner, store *mocks.MockReportStore)
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name: "successful scan is saved",
			body: `{"host": "192.0.2.10", "ports": [22, 80]}`,
			setup: func(scanner *mocks.MockScanner, store *mocks.MockReportStore) {
				report := sampleReport()
				scanner.EXPECT().FullScan(gomock.Any(), "192.0.2.10", []int{22, 80}).Return(report, nil)
				store.EXPECT().SaveReport(gomock.Any(), report).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "save failure does not fail the request",
			body: `{"host": "192.0.2.10"}`,
			setup: func(scanner *mocks.MockScanner, store *mocks.MockReportStore) {
				scanner.EXPECT().FullScan(gomock.Any(), "192.0.2.10", gomock.Nil()).Return(sampleReport(), nil)
				store.EXPECT().SaveReport(gomock.Any(), gomock.Any()).
					Return(errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection failed"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing host",
			body:           `{"ports": [80]}`,
			setup:          func(*mocks.MockScanner, *mocks.MockReportStore) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION",
			expectedMsg:    "host is required",
		},
		{
			name:           "unknown field",
			body:           `{"host": "192.0.2.10", "timeout": 5}`,
			setup:          func(*mocks.MockScanner, *mocks.MockReportStore) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION",
			expectedMsg:    "Invalid JSON body",
		},
		{
			name:           "body too large",
			body:           `{"host": "` + strings.Repeat("a", 2048) + `"}`,
			setup:          func(*mocks.MockScanner, *mocks.MockReportStore) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION",
			expectedMsg:    "Request body too large (max 1024 bytes)",
		},
		{
			name: "invalid target",
			body: `{"host": "not a host"}`,
			setup: func(scanner *mocks.MockScanner, _ *mocks.MockReportStore) {
				scanner.EXPECT().FullScan(gomock.Any(), "not a host", gomock.Nil()).
					Return(nil, errors.ErrInvalidTarget("not a host"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "TARGET_INVALID",
			expectedMsg:    "Invalid IP address or hostname format",
		},
		{
			name: "too many ports",
			body: `{"host": "192.0.2.10", "ports": [1]}`,
			setup: func(scanner *mocks.MockScanner, _ *mocks.MockReportStore) {
				scanner.EXPECT().FullScan(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.ErrPortLimit(101, 100))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "TOO_MANY_PORTS",
			expectedMsg:    "Maximum 100 ports can be scanned at once",
		},
		{
			name: "unresolvable host",
			body: `{"host": "nowhere.invalid"}`,
			setup: func(scanner *mocks.MockScanner, _ *mocks.MockReportStore) {
				scanner.EXPECT().FullScan(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.ErrResolution("nowhere.invalid", context.DeadlineExceeded))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "RESOLUTION_FAILED",
			expectedMsg:    "Target could not be resolved",
		},
		{
			name: "cancelled scan",
			body: `{"host": "192.0.2.10"}`,
			setup: func(scanner *mocks.MockScanner, _ *mocks.MockReportStore) {
				scanner.EXPECT().FullScan(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.ErrScanCancelled("192.0.2.10", context.Canceled))
			},
			expectedStatus: http.StatusRequestTimeout,
			expectedCode:   "CANCELED",
			expectedMsg:    "Scan was cancelled",
		},
		{
			name: "internal failure hides cause",
			body: `{"host": "192.0.2.10"}`,
			setup: func(scanner *mocks.MockScanner, _ *mocks.MockReportStore) {
				scanner.EXPECT().FullScan(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.NewScanError(errors.CodeScanFailed, "socket table exhausted"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "SCAN_FAILED",
			expectedMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			scanner := mocks.NewMockScanner(ctrl)
			store := mocks.NewMockReportStore(ctrl)
			tt.setup(scanner, store)

			rec := httptest.NewRecorder()
			newTestScannerHandler(scanner, store).Scan(rec, postJSON("/api/v1/scanner/scan", tt.body))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decodeResponse(t, rec)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, true, body["success"])
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "6f1c1f36-6a4e-4d59-9b1e-0c3f2b0a7d11", data["id"])
				assert.Len(t, data["results"], 2)
				return
			}
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.expectedCode, body["code"])
			assert.Equal(t, tt.expectedMsg, body["message"])
		})
	}
}

func TestScannerHandler_Scan_AppliesDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)

	scanner.EXPECT().FullScan(gomock.Any(), "192.0.2.10", gomock.Nil()).
		DoAndReturn(func(ctx context.Context, _ string, _ []int) (*recon.Report, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
			return sampleReport(), nil
		})

	rec := httptest.NewRecorder()
	newTestScannerHandler(scanner, nil).Scan(rec, postJSON("/api/v1/scanner/scan", `{"host": "192.0.2.10"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScannerHandler_QuickScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)

	scanner.EXPECT().QuickScan(gomock.Any(), "example.test").Return(&recon.LivenessResult{
		Target: recon.Target{
			Input:    "example.test",
			Address:  netip.MustParseAddr("192.0.2.20"),
			Hostname: "example.test",
		},
		IsUp:          true,
		OpenPortCount: 2,
		Results: []recon.ProbeResult{
			{Port: 80, Status: recon.StatusOpen},
			{Port: 443, Status: recon.StatusOpen},
		},
	}, nil)

	rec := httptest.NewRecorder()
	newTestScannerHandler(scanner, nil).QuickScan(rec, postJSON("/api/v1/scanner/quick", `{"host": "example.test"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"data": {
			"target": {"ip": "192.0.2.20", "hostname": "example.test"},
			"isUp": true,
			"openPorts": 2
		}
	}`, rec.Body.String())
}

func TestScannerHandler_QuickScan_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)
	scanner.EXPECT().QuickScan(gomock.Any(), "999.1.1.1").Return(nil, errors.ErrInvalidTarget("999.1.1.1"))

	rec := httptest.NewRecorder()
	newTestScannerHandler(scanner, nil).QuickScan(rec, postJSON("/api/v1/scanner/quick", `{"host": "999.1.1.1"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TARGET_INVALID", decodeResponse(t, rec)["code"])
}

func TestScannerHandler_Ports(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestScannerHandler(nil, nil).Ports(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scanner/ports", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool             `json:"success"`
		Data    []recon.PortSpec `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, recon.ReferencePorts(), body.Data)
}

func TestScannerHandler_History(t *testing.T) {
	summaries := []db.ReportSummary{{
		ID:         uuid.New(),
		Mode:       recon.ModeFull,
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DurationMS: 250,
		Summary:    recon.Summary{Total: 2, Open: 1, Closed: 1},
	}}

	tests := []struct {
		name           string
		query          string
		setup          func(store *mocks.MockReportStore)
		expectedStatus int
	}{
		{
			name:  "default limit",
			query: "",
			setup: func(store *mocks.MockReportStore) {
				store.EXPECT().ListReports(gomock.Any(), db.DefaultHistoryLimit).Return(summaries, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "explicit limit",
			query: "?limit=5",
			setup: func(store *mocks.MockReportStore) {
				store.EXPECT().ListReports(gomock.Any(), 5).Return(summaries, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "non-numeric limit",
			query:          "?limit=many",
			setup:          func(*mocks.MockReportStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "zero limit",
			query:          "?limit=0",
			setup:          func(*mocks.MockReportStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "",
			setup: func(store *mocks.MockReportStore) {
				store.EXPECT().ListReports(gomock.Any(), gomock.Any()).
					Return(nil, errors.NewDatabaseError(errors.CodeDatabaseQuery, "Database query failed"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockReportStore(ctrl)
			tt.setup(store)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/scanner/history"+tt.query, http.NoBody)
			newTestScannerHandler(nil, store).History(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				data, ok := decodeResponse(t, rec)["data"].([]any)
				require.True(t, ok)
				assert.Len(t, data, 1)
			}
		})
	}
}

func TestScannerHandler_HistoryDisabled(t *testing.T) {
	h := newTestScannerHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scanner/history", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Report history is disabled", decodeResponse(t, rec)["message"])

	rec = httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", http.NoBody), map[string]string{"id": uuid.NewString()})
	h.Report(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScannerHandler_Report(t *testing.T) {
	report := sampleReport()

	tests := []struct {
		name           string
		id             string
		setup          func(store *mocks.MockReportStore)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "found",
			id:   report.ID.String(),
			setup: func(store *mocks.MockReportStore) {
				store.EXPECT().GetReport(gomock.Any(), report.ID).Return(report, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found",
			id:   report.ID.String(),
			setup: func(store *mocks.MockReportStore) {
				store.EXPECT().GetReport(gomock.Any(), report.ID).
					Return(nil, errors.NewDatabaseError(errors.CodeNotFound, "Resource not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Report not found",
		},
		{
			name:           "malformed id",
			id:             "not-a-uuid",
			setup:          func(*mocks.MockReportStore) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid id: not-a-uuid",
		},
		{
			name: "store failure",
			id:   report.ID.String(),
			setup: func(store *mocks.MockReportStore) {
				store.EXPECT().GetReport(gomock.Any(), gomock.Any()).
					Return(nil, errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockReportStore(ctrl)
			tt.setup(store)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/scanner/history/"+tt.id, http.NoBody)
			req = mux.SetURLVars(req, map[string]string{"id": tt.id})
			rec := httptest.NewRecorder()
			newTestScannerHandler(nil, store).Report(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decodeResponse(t, rec)
			if tt.expectedStatus == http.StatusOK {
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, report.ID.String(), data["id"])
				return
			}
			assert.Equal(t, tt.expectedMsg, body["message"])
		})
	}
}

func TestScannerHandler_SlotLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)

	limiter := slots.New(1)
	require.NoError(t, limiter.Acquire(context.Background(), "busy"))

	h := NewScannerHandler(scanner, nil, limiter, logging.NewDiscard(), 50*time.Millisecond, 1024)

	rec := httptest.NewRecorder()
	h.Scan(rec, postJSON("/api/v1/scanner/scan", `{"host": "192.0.2.10"}`))

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Equal(t, "CANCELED", decodeResponse(t, rec)["code"])

	limiter.Release("busy")
	scanner.EXPECT().QuickScan(gomock.Any(), "192.0.2.10").
		DoAndReturn(func(context.Context, string) (*recon.LivenessResult, error) {
			assert.Equal(t, 1, limiter.Active())
			return &recon.LivenessResult{Target: recon.Target{Address: netip.MustParseAddr("192.0.2.10")}}, nil
		})

	rec = httptest.NewRecorder()
	h.QuickScan(rec, postJSON("/api/v1/scanner/quick", `{"host": "192.0.2.10"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, limiter.Active())
}
