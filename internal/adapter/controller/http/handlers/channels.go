package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/controller/http/middleware"
	"github.com/frclabs/reportcenter/internal/entity"
	"github.com/frclabs/reportcenter/internal/usecase/channels"
	"github.com/frclabs/reportcenter/internal/usecase/notifications"
)

// ChannelsHandler handles HTTP requests for notification channels
type ChannelsHandler struct {
	service    *channels.Service
	dispatcher *notifications.Dispatcher
}

// NewChannelsHandler creates a new channels handler
func NewChannelsHandler(service *channels.Service, dispatcher *notifications.Dispatcher) *ChannelsHandler {
	return &ChannelsHandler{service: service, dispatcher: dispatcher}
}

// channelView is the API rendering of a channel. The stored secret never
// leaves the server; only a masked tail is shown.
type channelView struct {
	*entity.NotificationChannel
	MaskedSecret string `json:"masked_secret,omitempty"`
}

func (h *ChannelsHandler) view(ch *entity.NotificationChannel) channelView {
	return channelView{
		NotificationChannel: ch,
		MaskedSecret:        h.service.MaskedSecret(ch),
	}
}

// CreateChannel handles POST /api/v1/channels
func (h *ChannelsHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	var input channels.CreateInput
	if err := DecodeJSON(r, &input); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ch, err := h.service.Create(ctx, orgID, input)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Failed to create channel", err)
		return
	}

	JSONResponse(w, http.StatusCreated, map[string]interface{}{"data": h.view(ch)})
}

// ListChannels handles GET /api/v1/channels
func (h *ChannelsHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	list, err := h.service.List(ctx, orgID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Failed to retrieve channels", err)
		return
	}

	views := make([]channelView, 0, len(list))
	for i := range list {
		views = append(views, h.view(&list[i]))
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": views})
}

// GetChannel handles GET /api/v1/channels/{id}
func (h *ChannelsHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid channel ID", err)
		return
	}

	ch, err := h.service.Get(ctx, orgID, channelID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Channel not found", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{"data": h.view(ch)})
}

// DeleteChannel handles DELETE /api/v1/channels/{id}
func (h *ChannelsHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid channel ID", err)
		return
	}

	if err := h.service.Delete(ctx, orgID, channelID); err != nil {
		ErrorResponse(w, errStatus(err), "Failed to delete channel", err)
		return
	}

	SuccessResponse(w, "Channel deleted", nil)
}

// TestChannel handles POST /api/v1/channels/{id}/test. A successful test
// delivery marks the channel verified.
func (h *ChannelsHandler) TestChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrgID(ctx)

	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid channel ID", err)
		return
	}

	ch, err := h.service.Get(ctx, orgID, channelID)
	if err != nil {
		ErrorResponse(w, errStatus(err), "Channel not found", err)
		return
	}

	if err := h.dispatcher.SendTest(ctx, ch); err != nil {
		ErrorResponse(w, http.StatusBadGateway, "Test notification failed", err)
		return
	}

	if err := h.service.MarkVerified(ctx, ch); err != nil {
		ErrorResponse(w, errStatus(err), "Test sent but verification not recorded", err)
		return
	}

	SuccessResponse(w, "Test notification sent", map[string]interface{}{
		"channel_id": ch.ID,
		"verified":   true,
	})
}
