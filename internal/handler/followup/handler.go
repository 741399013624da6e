package followup

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	followupService "github.com/matti-app/matti/backend/internal/service/followup"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler exposes the follow-up context of the caller's latest conversation.
type Handler struct {
	followUpSvc *followupService.Service
}

// New creates the follow-up handler.
func New(followUpSvc *followupService.Service) *Handler {
	return &Handler{followUpSvc: followUpSvc}
}

// RegisterRoutes mounts the follow-up routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/follow-up/context", h.handleContext)
}

// handleContext returns {"context": null} when there is nothing to follow up.
func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	fc, err := h.followUpSvc.RecentContext(r.Context(), middleware.OpenID(r.Context()))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("component", "followup_handler").Msg("build follow-up context")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]any{"context": fc}
	if fc != nil {
		resp["prompt"] = fc.Prompt()
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}
