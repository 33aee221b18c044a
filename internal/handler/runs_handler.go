package handler

import (
	"net/http"
	"strconv"

	"github.com/tamzid2001/docuflux/internal/domain"
)

// RunsHandler lists recent pipeline runs from the run ledger.
type RunsHandler struct {
	runs   domain.RunRepository
	logger domain.Logger
}

func NewRunsHandler(runs domain.RunRepository, logger domain.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, logger: logger}
}

// List handles GET /api/v1/runs?limit=N. The repository clamps the limit.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", err)
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if records == nil {
		records = []*domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": records})
}
