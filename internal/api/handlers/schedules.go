package handlers

import (
	"net/http"

	"github.com/cyberdash/reconengine/internal/schedule"
)

// ScheduleLister reports the state of scheduled scans.
type ScheduleLister interface {
	Status() []schedule.Status
}

// SchedulesHandler serves the scheduled scan listing.
type SchedulesHandler struct {
	schedules ScheduleLister
}

// NewSchedulesHandler creates a schedules handler. schedules may be nil when
// no jobs are configured.
func NewSchedulesHandler(schedules ScheduleLister) *SchedulesHandler {
	return &SchedulesHandler{schedules: schedules}
}

// List handles GET /api/v1/scanner/schedules.
func (h *SchedulesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		writeSuccess(w, r, []schedule.Status{})
		return
	}
	writeSuccess(w, r, h.schedules.Status())
}
