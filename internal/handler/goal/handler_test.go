package goal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/model/goal"
	"github.com/matti-app/matti/backend/internal/service/ai"
	goalservice "github.com/matti-app/matti/backend/internal/service/goal"
	"github.com/matti-app/matti/backend/internal/store/storetest"
)

type fakePlanner struct {
	plan goal.Plan
	err  error
}

func (p fakePlanner) GeneratePlan(context.Context, string, goal.Type, string) (goal.Plan, error) {
	return p.plan, p.err
}

func setupRouter(t *testing.T, planner goalservice.Planner) http.Handler {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }
	svc := goalservice.NewService(storetest.New(t), planner, now)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{OpenID: "u1"})))
		})
	})
	New(svc).RegisterRoutes(r)
	return r
}

func send(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestDraftFinalizeAndFetch(t *testing.T) {
	h := setupRouter(t, fakePlanner{plan: goal.Plan{
		Intro: "Stap voor stap.",
		Steps: []goal.Step{
			{Sequence: 1, ActionText: "Maak een weekplanning"},
			{Sequence: 2, ActionText: "Plan elke dag één taak"},
		},
	}})

	resp := send(t, h, http.MethodPost, "/goals", map[string]string{"goalType": "planning"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var draft goal.Goal
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &draft))
	assert.Equal(t, "Beter plannen", draft.Title)
	assert.Equal(t, goal.StatusDraft, draft.Status)

	path := fmt.Sprintf("/goals/%d", draft.ID)
	resp = send(t, h, http.MethodPost, path+"/finalize", map[string]string{"clarification": "vooral voor toetsen"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var active goal.WithSteps
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &active))
	require.Len(t, active.Actions, 2)
	require.NotNil(t, active.ActiveAction)
	assert.Equal(t, "Maak een weekplanning", active.ActiveAction.ActionText)

	resp = send(t, h, http.MethodPost, path+"/finalize", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = send(t, h, http.MethodGet, "/goals/active", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Goals []goal.WithSteps `json:"goals"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list.Goals, 1)

	resp = send(t, h, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestFinalizeFailures(t *testing.T) {
	tests := []struct {
		name    string
		planner fakePlanner
		want    int
	}{
		{"one step plan", fakePlanner{plan: goal.Plan{Steps: []goal.Step{{Sequence: 1, ActionText: "x"}}}}, http.StatusUnprocessableEntity},
		{"malformed plan", fakePlanner{err: ai.ErrMalformedPlan}, http.StatusUnprocessableEntity},
		{"no model", fakePlanner{err: ai.ErrUnavailable}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupRouter(t, tt.planner)
			resp := send(t, h, http.MethodPost, "/goals", map[string]string{"goalType": "custom", "customText": "Meer bewegen"})
			require.Equal(t, http.StatusCreated, resp.Code)
			var draft goal.Goal
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &draft))
			assert.Equal(t, "Meer bewegen", draft.Title)

			resp = send(t, h, http.MethodPost, fmt.Sprintf("/goals/%d/finalize", draft.ID), nil)
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestGoalValidation(t *testing.T) {
	h := setupRouter(t, fakePlanner{})

	resp := send(t, h, http.MethodPost, "/goals", map[string]string{"goalType": "fame"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = send(t, h, http.MethodGet, "/goals/77", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
