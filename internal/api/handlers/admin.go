package handlers

import (
	"net/http"

	"github.com/bonjohen/second-brain/internal/service"
)

// AdminHandler exposes the background machinery for manual operation:
// running a scheduler tick on demand and reading the substrate health
// report.
type AdminHandler struct {
	scheduler *service.Scheduler
	report    *service.ReportService
	curator   *service.CuratorService
}

func NewAdminHandler(scheduler *service.Scheduler, report *service.ReportService, curator *service.CuratorService) *AdminHandler {
	return &AdminHandler{scheduler: scheduler, report: report, curator: curator}
}

// Tick runs all scheduler steps once, synchronously.
func (h *AdminHandler) Tick(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Tick(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"failures": h.scheduler.FailureCounts(),
	})
}

// Curate runs the curator passes once, synchronously.
func (h *AdminHandler) Curate(w http.ResponseWriter, r *http.Request) {
	result, err := h.curator.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "curator run failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Report returns counts of every entity type plus beliefs by status.
func (h *AdminHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.report.Health(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
