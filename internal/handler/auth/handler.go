package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/user"
	authService "github.com/matti-app/matti/backend/internal/service/auth"
	"github.com/matti-app/matti/backend/internal/store"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler serves the session endpoints.
type Handler struct {
	authSvc *authService.Service
	cookies middleware.CookieOptions
}

// New creates the session handler.
func New(authSvc *authService.Service, cookies middleware.CookieOptions) *Handler {
	return &Handler{authSvc: authSvc, cookies: cookies}
}

// RegisterRoutes mounts the session routes. Refresh and logout work without
// a valid access token.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RequireUser).Get("/me", h.handleMe)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
	})
}

type session struct {
	User             user.User `json:"user"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.authSvc.User(r.Context(), middleware.OpenID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("load user")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]user.User{"user": u})
}

// handleRefresh rotates the refresh cookie into a new token pair.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(middleware.RefreshCookie)
	if err != nil || c.Value == "" {
		utils.RespondError(w, http.StatusUnauthorized, "refresh token missing")
		return
	}

	u, pair, err := h.authSvc.Refresh(r.Context(), c.Value)
	switch {
	case errors.Is(err, authService.ErrInvalidToken), errors.Is(err, authService.ErrTokenRevoked):
		middleware.ClearSessionCookies(w, h.cookies)
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("refresh session")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	middleware.SetSessionCookies(w, pair, h.cookies)
	utils.RespondJSON(w, http.StatusOK, session{
		User:             u,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if openID := middleware.OpenID(r.Context()); openID != "" {
		if err := h.authSvc.Logout(r.Context(), openID); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("revoke refresh token")
		}
	}
	middleware.ClearSessionCookies(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}
