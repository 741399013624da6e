package action

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/action"
	"github.com/matti-app/matti/backend/internal/model/chat"
	actionService "github.com/matti-app/matti/backend/internal/service/action"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler serves the action endpoints.
type Handler struct {
	actionSvc *actionService.Service
}

// New creates the action handler.
func New(actionSvc *actionService.Service) *Handler {
	return &Handler{actionSvc: actionSvc}
}

// RegisterRoutes mounts the action routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/actions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleSave)
		r.Get("/stats", h.handleStats)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/status", h.handleUpdateStatus)
	})
}

// handleList lists the caller's actions, optionally filtered by ?status=.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var status *action.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := action.Status(raw)
		status = &s
	}

	actions, err := h.actionSvc.List(r.Context(), middleware.OpenID(r.Context()), status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if actions == nil {
		actions = []action.Action{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ThemeID           chat.ThemeID `json:"themeId"`
		ConversationID    *int64       `json:"conversationId"`
		ActionText        string       `json:"actionText"`
		ActionType        *string      `json:"actionType"`
		FollowUpIntervals []int        `json:"followUpIntervals"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.actionSvc.Save(r.Context(), middleware.OpenID(r.Context()), actionService.NewAction{
		ThemeID:           payload.ThemeID,
		ConversationID:    payload.ConversationID,
		ActionText:        payload.ActionText,
		ActionType:        payload.ActionType,
		FollowUpIntervals: payload.FollowUpIntervals,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.actionSvc.Stats(r.Context(), middleware.OpenID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, followUps, err := h.actionSvc.Get(r.Context(), middleware.OpenID(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if followUps == nil {
		followUps = []action.FollowUp{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"action": a, "followUps": followUps})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Status action.Status `json:"status"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.actionSvc.UpdateStatus(r.Context(), middleware.OpenID(r.Context()), id, payload.Status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, a)
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, actionService.ErrActionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, actionService.ErrInvalidTransition):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, actionService.ErrInvalidStatus),
		errors.Is(err, actionService.ErrEmptyAction),
		errors.Is(err, actionService.ErrInvalidTheme),
		errors.Is(err, actionService.ErrInvalidIntervals):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("component", "action_handler").Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
