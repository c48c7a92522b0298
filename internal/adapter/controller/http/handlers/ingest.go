package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frclabs/reportcenter/internal/adapter/controller/http/middleware"
	"github.com/frclabs/reportcenter/internal/usecase/ingest"
)

// IngestHandler handles HTTP requests for log ingestion
type IngestHandler struct {
	service *ingest.Service
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service *ingest.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// ingestRequest accepts a single line or a batch; "log" and "logs" may be
// combined, the single line is processed first.
type ingestRequest struct {
	Log        string   `json:"log,omitempty"`
	Logs       []string `json:"logs,omitempty"`
	ServerName string   `json:"server_name,omitempty"`
}

// Ingest handles POST /api/v1/ingest/{source}
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)
	sourceType := chi.URLParam(r, "source")

	var req ingestRequest
	if err := DecodeJSON(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lines := req.Logs
	if req.Log != "" {
		lines = append([]string{req.Log}, lines...)
	}
	if len(lines) == 0 {
		ErrorResponse(w, http.StatusBadRequest, "No log lines provided", nil)
		return
	}

	result, err := h.service.IngestBatch(ctx, orgID, sourceType, req.ServerName, lines)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to ingest logs", err)
		return
	}

	JSONResponse(w, http.StatusAccepted, result)
}
