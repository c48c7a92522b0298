package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/controller/http/middleware"
	"github.com/frclabs/reportcenter/internal/entity"
	"github.com/frclabs/reportcenter/internal/usecase/events"
)

// EventsHandler handles HTTP requests for events
type EventsHandler struct {
	service *events.Service
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(service *events.Service) *EventsHandler {
	return &EventsHandler{service: service}
}

// ListEvents handles GET /api/v1/events
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	filter := entity.EventFilter{
		SourceType:  r.URL.Query().Get("source_type"),
		Action:      r.URL.Query().Get("action"),
		Severity:    r.URL.Query().Get("severity"),
		CountryCode: r.URL.Query().Get("country"),
		SrcIP:       r.URL.Query().Get("src_ip"),
		SourceHost:  r.URL.Query().Get("server"),
		StartTime:   queryTime(r, "start_time"),
		EndTime:     queryTime(r, "end_time"),
	}

	result, err := h.service.List(ctx, orgID, filter,
		queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve events", err)
		return
	}

	JSONResponse(w, http.StatusOK, result)
}

// GetEvent handles GET /api/v1/events/{id}
func (h *EventsHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid event ID", err)
		return
	}

	event, err := h.service.Get(ctx, orgID, eventID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Event not found", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": event})
}

// TopAttackers handles GET /api/v1/stats/top-attackers
func (h *EventsHandler) TopAttackers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	attackers, err := h.service.TopAttackers(ctx, orgID,
		queryWindow(r), queryInt(r, "limit", 10))
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve top attackers", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": attackers})
}

// ByCountry handles GET /api/v1/stats/by-country
func (h *EventsHandler) ByCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	countries, err := h.service.ByCountry(ctx, orgID,
		queryWindow(r), queryInt(r, "limit", 20))
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve country stats", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": countries})
}

// Hostnames handles GET /api/v1/events/hostnames
func (h *EventsHandler) Hostnames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	hostnames, err := h.service.Hostnames(ctx, orgID, queryWindow(r))
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve hostnames", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": hostnames})
}

// queryWindow reads the lookback window in hours, default 24.
func queryWindow(r *http.Request) time.Duration {
	return time.Duration(queryInt(r, "hours", 24)) * time.Hour
}
