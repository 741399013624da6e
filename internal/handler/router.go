package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/matti-app/matti/backend/internal/config"
	"github.com/matti-app/matti/backend/internal/handler/action"
	"github.com/matti-app/matti/backend/internal/handler/assistant"
	"github.com/matti-app/matti/backend/internal/handler/auth"
	"github.com/matti-app/matti/backend/internal/handler/chat"
	"github.com/matti-app/matti/backend/internal/handler/feedback"
	"github.com/matti-app/matti/backend/internal/handler/followup"
	"github.com/matti-app/matti/backend/internal/handler/goal"
	"github.com/matti-app/matti/backend/internal/handler/health"
	"github.com/matti-app/matti/backend/internal/handler/stream"
	middlewarePkg "github.com/matti-app/matti/backend/internal/middleware"
	assistantModel "github.com/matti-app/matti/backend/internal/model/assistant"
	actionService "github.com/matti-app/matti/backend/internal/service/action"
	authService "github.com/matti-app/matti/backend/internal/service/auth"
	chatService "github.com/matti-app/matti/backend/internal/service/chat"
	"github.com/matti-app/matti/backend/internal/service/coach"
	feedbackService "github.com/matti-app/matti/backend/internal/service/feedback"
	followupService "github.com/matti-app/matti/backend/internal/service/followup"
	goalService "github.com/matti-app/matti/backend/internal/service/goal"
)

// Services are the dependencies of the HTTP layer.
type Services struct {
	Assistants assistantModel.Store
	Auth       *authService.Service
	Chat       *chatService.Service
	Coach      *coach.Service
	Actions    *actionService.Service
	Goals      *goalService.Service
	Feedback   *feedbackService.Service
	FollowUps  *followupService.Service
	DB         health.Pinger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(logger zerolog.Logger, cfg config.Config, svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		if r.URL.Path == "/health" {
			return
		}
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	health.New(svc.DB).RegisterRoutes(r)

	cookies := middlewarePkg.CookieOptions{Secure: cfg.Auth.SecureCookie}
	limiter := middlewarePkg.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)

	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Use(middlewarePkg.Session(svc.Auth, cookies))

		auth.New(svc.Auth, cookies).RegisterRoutes(api)

		api.Group(func(user chi.Router) {
			user.Use(middlewarePkg.RequireUser)

			assistant.New(svc.Assistants, svc.Coach.Assistant()).RegisterRoutes(user)
			chat.New(svc.Chat, svc.Coach).RegisterRoutes(user)
			stream.New(svc.Chat, svc.Coach, cfg.AI.StreamResponse).RegisterRoutes(user)
			action.New(svc.Actions).RegisterRoutes(user)
			goal.New(svc.Goals).RegisterRoutes(user)
			feedback.New(svc.Feedback).RegisterRoutes(user)
			followup.New(svc.FollowUps).RegisterRoutes(user)
		})
	})

	return r
}
