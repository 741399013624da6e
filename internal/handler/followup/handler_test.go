package followup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/chat"
	chatservice "github.com/matti-app/matti/backend/internal/service/chat"
	followupservice "github.com/matti-app/matti/backend/internal/service/followup"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

func TestContextEndpoint(t *testing.T) {
	db := storetest.New(t)
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	chats := chatservice.NewService(db, nil, chatservice.Options{Now: clock})
	svc := followupservice.NewService(db, chats, 0, clock)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{OpenID: "u1"})))
		})
	})
	New(svc).RegisterRoutes(r)

	get := func() map[string]json.RawMessage {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/follow-up/context", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		return body
	}

	body := get()
	assert.Equal(t, "null", string(body["context"]))
	assert.NotContains(t, body, "prompt")

	ctx := context.Background()
	conv, err := chats.GetConversation(ctx, "u1", chat.ThemeBullying)
	require.NoError(t, err)
	_, err = chats.SaveMessage(ctx, "u1", conv.ID, chat.RoleUser, "ze lachen me steeds uit in de klas")
	require.NoError(t, err)

	body = get()
	var fc struct {
		ThemeID chat.ThemeID `json:"themeId"`
	}
	require.NoError(t, json.Unmarshal(body["context"], &fc))
	assert.Equal(t, chat.ThemeBullying, fc.ThemeID)

	var prompt string
	require.NoError(t, json.Unmarshal(body["prompt"], &prompt))
	assert.Contains(t, prompt, "Thema: Pesten")
}
