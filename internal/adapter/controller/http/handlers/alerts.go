package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/controller/http/middleware"
	"github.com/frclabs/reportcenter/internal/usecase/alerts"
)

// AlertsHandler handles HTTP requests for alert rules and history
type AlertsHandler struct {
	service   *alerts.Service
	evaluator *alerts.Evaluator
}

// NewAlertsHandler creates a new alerts handler
func NewAlertsHandler(service *alerts.Service, evaluator *alerts.Evaluator) *AlertsHandler {
	return &AlertsHandler{service: service, evaluator: evaluator}
}

// CreateRule handles POST /api/v1/alerts/rules
func (h *AlertsHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	var input alerts.RuleInput
	if err := DecodeJSON(r, &input); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.service.CreateRule(ctx, orgID, input)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Failed to create alert rule", err)
		return
	}

	JSONResponse(w, http.StatusCreated, map[string]interface{}{"data": rule})
}

// ListRules handles GET /api/v1/alerts/rules
func (h *AlertsHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	rules, err := h.service.ListRules(ctx, orgID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve alert rules", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": rules})
}

// GetRule handles GET /api/v1/alerts/rules/{id}
func (h *AlertsHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	ruleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid rule ID", err)
		return
	}

	rule, err := h.service.GetRule(ctx, orgID, ruleID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Alert rule not found", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": rule})
}

// ListHistory handles GET /api/v1/alerts/history
func (h *AlertsHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	history, err := h.service.ListHistory(ctx, orgID,
		queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve alert history", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": history})
}

// Acknowledge handles POST /api/v1/alerts/history/{id}/acknowledge
func (h *AlertsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid alert ID", err)
		return
	}

	var req struct {
		AcknowledgedBy string `json:"acknowledged_by"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	alert, err := h.service.Acknowledge(ctx, orgID, alertID, req.AcknowledgedBy)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to acknowledge alert", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": alert})
}

// EvaluateNow handles POST /api/v1/alerts/evaluate. It runs one full sweep
// over all enabled rules and returns the summary.
func (h *AlertsHandler) EvaluateNow(w http.ResponseWriter, r *http.Request) {
	summary, err := h.evaluator.EvaluateAll(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusInternalServerError, "Alert sweep failed", err)
		return
	}

	JSONResponse(w, http.StatusOK, summary)
}
