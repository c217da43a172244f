/*
handlers.go - HTTP handlers over the stored segmentation

PURPOSE:
  Access to the result of the last completed pipeline run. The only write
  is TriggerRun, which re-runs the pipeline through the RefreshScheduler.

ERROR HANDLING:
  Errors are returned as JSON:
  - 400: Invalid path or query parameter
  - 404: Customer has no RFM row
  - 409: A run is already in progress
  - 500: Store or pipeline failure
  - 503: No refresh scheduler configured

SEE ALSO:
  - dto.go: Response types
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/retail-rfm/export"
	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/rfm"
	"github.com/warp/retail-rfm/store/sqlstore"
)

const defaultRunsLimit = 20

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlstore.Store
	Scheduler *RefreshScheduler // optional
	Logger    logrus.FieldLogger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlstore.Store, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{Store: store, Logger: logger}
}

// Health reports table counts.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.Counts(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to count rows", err)
		return
	}
	resp := HealthDTO{Status: "ok", Driver: h.Store.Driver(), Counts: counts}
	if h.Scheduler != nil && h.Scheduler.Enabled {
		next := h.Scheduler.NextRunTime().UTC()
		resp.NextRefresh = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSegments returns the result set, optionally filtered by ?segment=.
// GET /api/segments
func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	rows, err := rfm.ReadResults(r.Context(), h.Store)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read segmentation", err)
		return
	}

	if seg := r.URL.Query().Get("segment"); seg != "" {
		if !knownSegment(seg) {
			h.writeError(w, http.StatusBadRequest, "Unknown segment: "+seg, nil)
			return
		}
		filtered := make([]rfm.ResultRow, 0, len(rows))
		for _, row := range rows {
			if row.Segment == seg {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	writeJSON(w, http.StatusOK, SegmentsResponse{Count: len(rows), Rows: rows})
}

// SegmentSummary returns customers and monetary per segment.
// GET /api/segments/summary
func (h *Handler) SegmentSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ReadSegmentation(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read segmentation", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Customers: len(rows), Segments: rfm.Summarize(rows)})
}

// ExportCSV streams the result set as CSV.
// GET /api/segments/export.csv
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := rfm.ReadResults(r.Context(), h.Store)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read segmentation", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=rfm_results.csv")
	if err := export.WriteCSV(w, rows); err != nil {
		h.Logger.WithError(err).Warn("csv export interrupted")
	}
}

// GetCustomerRFM returns one customer's row.
// GET /api/customers/{id}/rfm
func (h *Handler) GetCustomerRFM(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid customer id", err)
		return
	}

	seg, err := h.Store.GetSegmentation(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to read segmentation", err)
		return
	}
	if seg == nil {
		h.writeError(w, http.StatusNotFound, "No RFM record for customer", nil)
		return
	}
	writeJSON(w, http.StatusOK, rfm.Project([]retail.Segmentation{*seg})[0])
}

// ListRuns returns pipeline runs, newest first.
// GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []retail.Run{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// TriggerRun re-runs the pipeline from the configured export and returns the run.
// POST /api/runs
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Refresh not configured", nil)
		return
	}

	run, err := h.Scheduler.RunNow(r.Context())
	switch {
	case errors.Is(err, ErrRunInProgress):
		h.writeError(w, http.StatusConflict, "Run already in progress", nil)
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, "Pipeline run failed", err)
	default:
		writeJSON(w, http.StatusCreated, run)
	}
}

func knownSegment(s string) bool {
	for _, seg := range rfm.Segments {
		if string(seg) == s {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		if status >= http.StatusInternalServerError {
			h.Logger.WithError(err).Error(message)
		}
	}
	writeJSON(w, status, resp)
}
