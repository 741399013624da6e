package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/assistant"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler serves the branding of the deployed assistant.
type Handler struct {
	assistants assistant.Store
	active     assistant.Assistant
}

// New creates the assistant handler for the active assistant.
func New(assistants assistant.Store, active assistant.Assistant) *Handler {
	return &Handler{
		assistants: assistants,
		active:     active,
	}
}

// RegisterRoutes mounts the assistant routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleActive)
	r.Get("/assistants", h.handleList)
}

type theme struct {
	ID   chat.ThemeID `json:"id"`
	Name string       `json:"name"`
}

// handleActive returns the active assistant, a greeting and the theme list.
func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	name := "daar"
	if id, ok := middleware.IdentityFrom(r.Context()); ok && id.Name != "" {
		name = id.Name
	}

	themes := make([]theme, 0, len(chat.Themes()))
	for _, t := range chat.Themes() {
		themes = append(themes, theme{ID: t, Name: t.DisplayName()})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"assistant":      h.active,
		"welcomeMessage": assistant.WelcomeMessage(name),
		"themes":         themes,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.assistants.List())
}
