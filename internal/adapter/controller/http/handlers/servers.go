package handlers

import (
	"net/http"

	"github.com/frclabs/reportcenter/internal/adapter/controller/http/middleware"
	"github.com/frclabs/reportcenter/internal/usecase/servers"
)

// ServersHandler handles HTTP requests for discovered servers
type ServersHandler struct {
	service *servers.Service
}

// NewServersHandler creates a new servers handler
func NewServersHandler(service *servers.Service) *ServersHandler {
	return &ServersHandler{service: service}
}

// ListServers handles GET /api/v1/servers
func (h *ServersHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	list, err := h.service.List(ctx, orgID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve servers", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": list})
}

// ServerStats handles GET /api/v1/servers/stats
func (h *ServersHandler) ServerStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	stats, err := h.service.ListStats(ctx, orgID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve server stats", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": stats})
}
