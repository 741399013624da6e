package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/middleware"
	authservice "github.com/matti-app/matti/backend/internal/service/auth"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	svc, err := authservice.NewService(storetest.New(t), authservice.Options{
		Secret:      "test-secret",
		OwnerOpenID: "owner",
		Now:         func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	opts := middleware.CookieOptions{}
	r := chi.NewRouter()
	r.Use(middleware.Session(svc, opts))
	New(svc, opts).RegisterRoutes(r)
	return r
}

func cookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestBootstrapMeRefreshLogout(t *testing.T) {
	h := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(middleware.UserIDHeader, "owner")
	req.Header.Set(middleware.UserNameHeader, "Eva")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"role":"admin"`)

	access := cookie(resp, middleware.AccessCookie)
	refresh := cookie(resp, middleware.RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	rotated := cookie(resp, middleware.RefreshCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	// the old refresh token was rotated away
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(access)
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	cleared := cookie(resp, middleware.AccessCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(rotated)
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMeRequiresSession(t *testing.T) {
	h := setup(t)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
