package chat

import (
	"bytes"
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
	"github.com/matti-app/matti/backend/internal/model/assistant"
	"github.com/matti-app/matti/backend/internal/model/chat"
	"github.com/matti-app/matti/backend/internal/model/user"
	"github.com/matti-app/matti/backend/internal/service/ai"
	actionservice "github.com/matti-app/matti/backend/internal/service/action"
	chatservice "github.com/matti-app/matti/backend/internal/service/chat"
	"github.com/matti-app/matti/backend/internal/service/coach"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	return "Je zei: " + req.Query, nil
}

func (echoCompleter) Stream(ctx context.Context, req ai.Request, onDelta func(string) error) (string, error) {
	text, _ := echoCompleter{}.Complete(ctx, req)
	return text, onDelta(text)
}

func setupRouter(t *testing.T, completer ai.Completer) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	db := storetest.New(t)
	now := func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }
	chatSvc := chatservice.NewService(db, nil, chatservice.Options{Now: now})
	coachSvc := coach.NewService(coach.Config{
		Conversations: chatSvc,
		Actions:       actionservice.NewService(db, now),
		Completer:     completer,
		Assistant:     assistant.Seed()[0],
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithIdentity(req.Context(), middleware.Identity{OpenID: "u1", Role: user.RoleUser})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(chatSvc, coachSvc).RegisterRoutes(r)
	return r, chatSvc
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGetConversationCreatesPerTheme(t *testing.T) {
	r, _ := setupRouter(t, echoCompleter{})

	resp := do(t, r, http.MethodGet, "/chat/themes/school/conversation", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var first chat.Conversation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &first))
	assert.Equal(t, chat.ThemeSchool, first.ThemeID)
	assert.Equal(t, "u1", first.UserID)

	resp = do(t, r, http.MethodGet, "/chat/themes/school/conversation", nil)
	var again chat.Conversation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &again))
	assert.Equal(t, first.ID, again.ID)
}

func TestGetConversationUnknownTheme(t *testing.T) {
	r, _ := setupRouter(t, echoCompleter{})

	resp := do(t, r, http.MethodGet, "/chat/themes/sports/conversation", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSaveMessageReportsDetections(t *testing.T) {
	r, chatSvc := setupRouter(t, echoCompleter{})
	conv, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeFriends)
	require.NoError(t, err)

	resp := do(t, r, http.MethodPost, "/chat/conversations/"+itoa(conv.ID)+"/messages",
		map[string]string{"role": "user", "content": "Ze pesten me elke dag op school en schelden me uit, ik voel me zo alleen"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var body struct {
		MessageCount int `json:"messageCount"`
		Bullying     *struct {
			IsBullying bool `json:"isBullying"`
		} `json:"bullying"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 1, body.MessageCount)
	require.NotNil(t, body.Bullying)
	assert.True(t, body.Bullying.IsBullying)
}

func TestSaveMessageValidation(t *testing.T) {
	r, chatSvc := setupRouter(t, echoCompleter{})
	conv, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeHome)
	require.NoError(t, err)
	path := "/chat/conversations/" + itoa(conv.ID) + "/messages"

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"bad role", path, map[string]string{"role": "robot", "content": "hoi"}, http.StatusBadRequest},
		{"empty content", path, map[string]string{"role": "user", "content": "  "}, http.StatusBadRequest},
		{"unknown field", path, map[string]string{"role": "user", "content": "hoi", "mood": "blij"}, http.StatusBadRequest},
		{"bad id", "/chat/conversations/abc/messages", map[string]string{"role": "user", "content": "hoi"}, http.StatusBadRequest},
		{"missing conversation", "/chat/conversations/999/messages", map[string]string{"role": "user", "content": "hoi"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
		})
	}
}

func TestReplyAndArchiveFlow(t *testing.T) {
	r, chatSvc := setupRouter(t, echoCompleter{})
	conv, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeSchool)
	require.NoError(t, err)

	resp := do(t, r, http.MethodPost, "/chat/conversations/"+itoa(conv.ID)+"/reply", map[string]string{"content": "ik heb een toets"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var reply coach.Reply
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &reply))
	assert.Equal(t, "Je zei: ik heb een toets", reply.Message.Content)
	assert.Len(t, reply.Conversation.Messages, 2)

	resp = do(t, r, http.MethodPost, "/chat/themes/school/close", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var closed struct {
		Previous     chatservice.ArchiveResult `json:"previous"`
		Conversation chat.Conversation         `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &closed))
	assert.Equal(t, chatservice.ArchiveDone, closed.Previous)
	assert.NotEqual(t, conv.ID, closed.Conversation.ID)

	resp = do(t, r, http.MethodPost, "/chat/conversations/"+itoa(conv.ID)+"/messages",
		map[string]string{"role": "user", "content": "nog iets"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = do(t, r, http.MethodGet, "/chat/conversations", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Conversations []chat.Overview `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list.Conversations, 2)
}

func TestReplyWithoutModel(t *testing.T) {
	r, chatSvc := setupRouter(t, ai.Unavailable{})
	conv, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeSchool)
	require.NoError(t, err)

	resp := do(t, r, http.MethodPost, "/chat/conversations/"+itoa(conv.ID)+"/reply", map[string]string{"content": "hoi"})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestArchiveEmptyConversationDeletesIt(t *testing.T) {
	r, chatSvc := setupRouter(t, echoCompleter{})
	_, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeLove)
	require.NoError(t, err)

	resp := do(t, r, http.MethodPost, "/chat/themes/love/archive", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"result":"deleted"}`, resp.Body.String())
}

func TestInterventionTracking(t *testing.T) {
	r, chatSvc := setupRouter(t, echoCompleter{})
	conv, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeFeelings)
	require.NoError(t, err)
	base := "/chat/conversations/" + itoa(conv.ID)

	resp := do(t, r, http.MethodPost, base+"/intervention", map[string]string{"initialProblem": "slecht slapen"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = do(t, r, http.MethodPost, base+"/count", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"conversationCount":2}`, resp.Body.String())

	resp = do(t, r, http.MethodPut, base+"/outcome", map[string]string{"outcome": "opgelost"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, r, http.MethodPut, base+"/outcome", map[string]any{"outcome": "resolved", "actionCompletionRate": 80})
	require.Equal(t, http.StatusOK, resp.Code)
	var updated chat.Conversation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, chat.OutcomeResolved, updated.Outcome)
	assert.NotNil(t, updated.InterventionEndDate)

	resp = do(t, r, http.MethodPost, base+"/bullying-follow-up", map[string]string{"severity": "high"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "2025-06-05T12:00:00Z")
}

func TestDeleteTheme(t *testing.T) {
	r, chatSvc := setupRouter(t, echoCompleter{})
	_, err := chatSvc.GetConversation(context.Background(), "u1", chat.ThemeFuture)
	require.NoError(t, err)

	resp := do(t, r, http.MethodDelete, "/chat/themes/future/", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"deleted":1}`, resp.Body.String())
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
