package handlers

import (
	"net/http"

	"github.com/frclabs/reportcenter/internal/usecase/geoenrich"
)

// GeoHandler handles HTTP requests for geo enrichment operations
type GeoHandler struct {
	service *geoenrich.Service
}

// NewGeoHandler creates a new geo handler
func NewGeoHandler(service *geoenrich.Service) *GeoHandler {
	return &GeoHandler{service: service}
}

// Backfill handles POST /api/v1/geo/backfill. With force=true, already
// enriched events are re-resolved too.
func (h *GeoHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Backfill(r.Context(), queryBool(r, "force"))
	if err != nil {
		ErrorResponse(w, http.StatusInternalServerError, "Backfill failed", err)
		return
	}

	JSONResponse(w, http.StatusOK, result)
}

// Pending handles GET /api/v1/geo/pending
func (h *GeoHandler) Pending(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.PendingCount(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusInternalServerError, "Failed to count pending events", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"pending": count})
}
