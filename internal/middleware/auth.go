package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/model/user"
	"github.com/matti-app/matti/backend/internal/service/auth"
	"github.com/matti-app/matti/backend/pkg/utils"
)

const (
	AccessCookie  = "matti_access"
	RefreshCookie = "matti_refresh"

	// UserIDHeader and UserNameHeader let a trusted front-end bootstrap a
	// session for a user that has no cookies yet.
	UserIDHeader   = "X-Matti-User-Id"
	UserNameHeader = "X-Matti-User-Name"
)

// Identity is the authenticated caller.
type Identity struct {
	OpenID string
	Name   string
	Role   user.Role
}

// IsAdmin reports whether the caller may use admin endpoints.
func (i Identity) IsAdmin() bool { return i.Role == user.RoleAdmin }

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by Session.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// OpenID returns the caller's open id, or "" for anonymous requests.
func OpenID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.OpenID
}

// Sessions validates and issues session tokens.
type Sessions interface {
	Authenticate(token string) (*auth.Claims, error)
	SignIn(ctx context.Context, openID string, name *string) (user.User, auth.TokenPair, error)
}

// CookieOptions controls the session cookies.
type CookieOptions struct {
	Secure bool
}

// SetSessionCookies writes the access and refresh cookies of pair.
func SetSessionCookies(w http.ResponseWriter, pair auth.TokenPair, opts CookieOptions) {
	http.SetCookie(w, sessionCookie(AccessCookie, pair.AccessToken, pair.AccessExpiresAt, opts))
	http.SetCookie(w, sessionCookie(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt, opts))
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter, opts CookieOptions) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := sessionCookie(name, "", time.Unix(0, 0), opts)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func sessionCookie(name, value string, expires time.Time, opts CookieOptions) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if opts.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: sameSite,
	}
}

// Session resolves the caller from the access cookie or a bearer token.
// Without a valid token, the bootstrap headers sign the user in and set
// fresh cookies.
func Session(sessions Sessions, opts CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := accessToken(r); token != "" {
				claims, err := sessions.Authenticate(token)
				if err == nil {
					id := Identity{OpenID: claims.OpenID, Name: claims.Name, Role: claims.Role}
					next.ServeHTTP(w, r.WithContext(withLogger(WithIdentity(ctx, id), id)))
					return
				}
				zerolog.Ctx(ctx).Debug().Err(err).Msg("access token rejected")
			}

			if openID := strings.TrimSpace(r.Header.Get(UserIDHeader)); openID != "" {
				var name *string
				if n := strings.TrimSpace(r.Header.Get(UserNameHeader)); n != "" {
					name = &n
				}
				u, pair, err := sessions.SignIn(ctx, openID, name)
				if err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Msg("session bootstrap failed")
					utils.RespondError(w, http.StatusInternalServerError, "could not start session")
					return
				}
				SetSessionCookies(w, pair, opts)
				id := Identity{OpenID: u.OpenID, Role: u.Role}
				if u.Name != nil {
					id.Name = *u.Name
				}
				next.ServeHTTP(w, r.WithContext(withLogger(WithIdentity(ctx, id), id)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withLogger(ctx context.Context, id Identity) context.Context {
	l := zerolog.Ctx(ctx).With().Str("user", id.OpenID).Logger()
	return l.WithContext(ctx)
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			utils.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin callers with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !id.IsAdmin() {
			utils.RespondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
