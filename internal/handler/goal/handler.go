package goal

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/goal"
	"github.com/matti-app/matti/backend/internal/service/ai"
	goalService "github.com/matti-app/matti/backend/internal/service/goal"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler serves the goal endpoints.
type Handler struct {
	goalSvc *goalService.Service
}

// New creates the goal handler.
func New(goalSvc *goalService.Service) *Handler {
	return &Handler{goalSvc: goalSvc}
}

// RegisterRoutes mounts the goal routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/goals", func(r chi.Router) {
		r.Post("/", h.handleStartDraft)
		r.Get("/active", h.handleActive)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/finalize", h.handleFinalize)
	})
}

func (h *Handler) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		GoalType    goal.Type `json:"goalType"`
		CustomText  string    `json:"customText"`
		Description *string   `json:"description"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.goalSvc.StartDraft(r.Context(), middleware.OpenID(r.Context()), goalService.Draft{
		GoalType:    payload.GoalType,
		CustomText:  payload.CustomText,
		Description: payload.Description,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, g)
}

// handleFinalize generates the plan and activates the goal.
func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Clarification string `json:"clarification"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	g, err := h.goalSvc.Finalize(r.Context(), middleware.OpenID(r.Context()), id, payload.Clarification)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, g)
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalSvc.Active(r.Context(), middleware.OpenID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if goals == nil {
		goals = []goal.WithSteps{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.goalSvc.Get(r.Context(), middleware.OpenID(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, g)
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goalService.ErrGoalNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, goalService.ErrNotDraft):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, goalService.ErrInvalidGoalType):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, goalService.ErrPlanTooShort),
		errors.Is(err, ai.ErrMalformedPlan):
		utils.RespondError(w, http.StatusUnprocessableEntity, "could not build a usable plan, try again")
	case errors.Is(err, ai.ErrUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, "assistant is unavailable")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("component", "goal_handler").Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
