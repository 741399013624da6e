package feedback

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/feedback"
	feedbackService "github.com/matti-app/matti/backend/internal/service/feedback"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler serves message feedback and the admin overviews.
type Handler struct {
	feedbackSvc *feedbackService.Service
}

// New creates the feedback handler.
func New(feedbackSvc *feedbackService.Service) *Handler {
	return &Handler{feedbackSvc: feedbackSvc}
}

// RegisterRoutes mounts the feedback routes. Listing all feedback is
// restricted to admins.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/feedback", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/conversations/{id}", h.handleForConversation)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/", h.handleList)
			r.Get("/stats", h.handleStats)
			r.Get("/negative", h.handleNegative)
		})
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ConversationID int64           `json:"conversationId"`
		MessageIndex   int             `json:"messageIndex"`
		Rating         feedback.Rating `json:"rating"`
		FeedbackText   *string         `json:"feedbackText"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.feedbackSvc.Submit(r.Context(), middleware.OpenID(r.Context()), feedbackService.Submission{
		ConversationID: payload.ConversationID,
		MessageIndex:   payload.MessageIndex,
		Rating:         payload.Rating,
		Text:           payload.FeedbackText,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleForConversation(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.feedbackSvc.ForConversation(r.Context(), middleware.OpenID(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []feedback.Feedback{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"feedback": list})
}

// handleList pages through all feedback with ?rating=&limit=&offset=.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var filter feedback.Filter
	if raw := r.URL.Query().Get("rating"); raw != "" {
		rating := feedback.Rating(raw)
		filter.Rating = &rating
	}
	var err error
	if filter.Limit, err = utils.IntQuery(r, "limit", feedbackService.DefaultPageSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = utils.IntQuery(r, "offset", 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.feedbackSvc.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if page.Feedback == nil {
		page.Feedback = []feedback.Feedback{}
	}
	utils.RespondJSON(w, http.StatusOK, page)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedbackSvc.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleNegative(w http.ResponseWriter, r *http.Request) {
	list, err := h.feedbackSvc.Negative(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []feedback.Feedback{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"feedback": list})
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, feedbackService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, feedbackService.ErrInvalidRating),
		errors.Is(err, feedbackService.ErrTextTooLong),
		errors.Is(err, feedbackService.ErrInvalidMessageIndex):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("component", "feedback_handler").Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
