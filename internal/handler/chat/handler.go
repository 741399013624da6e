package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/service/ai"
	chatService "github.com/matti-app/matti/backend/internal/service/chat"
	"github.com/matti-app/matti/backend/internal/service/coach"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler serves the conversation endpoints.
type Handler struct {
	chatSvc  *chatService.Service
	coachSvc *coach.Service
}

// New creates the conversation handler.
func New(chatSvc *chatService.Service, coachSvc *coach.Service) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		coachSvc: coachSvc,
	}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Route("/themes/{themeID}", func(r chi.Router) {
			r.Get("/conversation", h.handleGetConversation)
			r.Post("/close", h.handleCloseAndStartNew)
			r.Post("/archive", h.handleArchive)
			r.Delete("/", h.handleDeleteTheme)
		})

		r.Get("/conversations", h.handleListConversations)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", h.handleConversationByID)
			r.Post("/messages", h.handleSaveMessage)
			r.Post("/reply", h.handleReply)
			r.Put("/summary", h.handleUpdateSummary)
			r.Post("/bullying-follow-up", h.handleScheduleBullyingFollowUp)
			r.Put("/outcome", h.handleUpdateOutcome)
			r.Post("/intervention", h.handleInitializeIntervention)
			r.Post("/count", h.handleIncrementCount)
		})
	})
}

func themeParam(r *http.Request) chat.ThemeID {
	return chat.ThemeID(chi.URLParam(r, "themeID"))
}

// handleGetConversation returns the active conversation of a theme.
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.GetConversation(r.Context(), middleware.OpenID(r.Context()), themeParam(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	conv, err := h.chatSvc.ConversationByID(r.Context(), middleware.OpenID(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.chatSvc.ListConversations(r.Context(), middleware.OpenID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []chat.Overview{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

// handleSaveMessage appends a message without generating a reply.
func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Role    chat.Role `json:"role"`
		Content string    `json:"content"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.chatSvc.SaveMessage(r.Context(), middleware.OpenID(r.Context()), id, payload.Role, payload.Content)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"conversation": res.Conversation,
		"messageCount": res.MessageCount,
		"crisis":       res.Crisis,
		"bullying":     res.Bullying,
	})
}

// handleReply stores the user's message and answers it in one response.
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.coachSvc.Reply(r.Context(), middleware.OpenID(r.Context()), id, payload.Content)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleUpdateSummary(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Summary string `json:"summary"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.chatSvc.UpdateSummary(r.Context(), middleware.OpenID(r.Context()), id, payload.Summary)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleScheduleBullyingFollowUp(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Severity chat.BullyingSeverity `json:"severity"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	due, err := h.chatSvc.ScheduleBullyingFollowUp(r.Context(), middleware.OpenID(r.Context()), id, payload.Severity)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]time.Time{"followUpDate": due})
}

func (h *Handler) handleUpdateOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Outcome              chat.Outcome `json:"outcome"`
		Resolution           *string      `json:"resolution"`
		ActionCompletionRate *int         `json:"actionCompletionRate"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.chatSvc.UpdateOutcome(r.Context(), middleware.OpenID(r.Context()), id, chatService.OutcomeUpdate{
		Outcome:              payload.Outcome,
		Resolution:           payload.Resolution,
		ActionCompletionRate: payload.ActionCompletionRate,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleInitializeIntervention(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		InitialProblem string `json:"initialProblem"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.chatSvc.InitializeIntervention(r.Context(), middleware.OpenID(r.Context()), id, payload.InitialProblem)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleIncrementCount(w http.ResponseWriter, r *http.Request) {
	id, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.chatSvc.IncrementConversationCount(r.Context(), middleware.OpenID(r.Context()), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"conversationCount": conv.ConversationCount})
}

// handleCloseAndStartNew archives the theme's conversation and opens a new one.
func (h *Handler) handleCloseAndStartNew(w http.ResponseWriter, r *http.Request) {
	conv, result, err := h.chatSvc.CloseAndStartNew(r.Context(), middleware.OpenID(r.Context()), themeParam(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"previous":     result,
		"conversation": conv,
	})
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Summary *string `json:"summary"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.chatSvc.ArchiveConversation(r.Context(), middleware.OpenID(r.Context()), themeParam(r), payload.Summary)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) handleDeleteTheme(w http.ResponseWriter, r *http.Request) {
	n, err := h.chatSvc.DeleteConversation(r.Context(), middleware.OpenID(r.Context()), themeParam(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrConversationArchived),
		errors.Is(err, chatService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrInvalidTheme),
		errors.Is(err, chatService.ErrInvalidRole),
		errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, chatService.ErrInvalidOutcome),
		errors.Is(err, chatService.ErrInvalidSeverity),
		errors.Is(err, chatService.ErrEmptySummary):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, "assistant is unavailable")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("component", "chat_handler").Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
