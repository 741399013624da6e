package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/middleware"
	"github.com/matti-app/matti/backend/internal/service/ai"
	chatService "github.com/matti-app/matti/backend/internal/service/chat"
	"github.com/matti-app/matti/backend/internal/service/coach"
	"github.com/matti-app/matti/backend/pkg/utils"
)

// Handler streams assistant replies via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	coachSvc  *coach.Service
	streaming bool
}

// New creates the stream handler. With streaming off the reply is generated
// in one call and sent as a single message event.
func New(chatSvc *chatService.Service, coachSvc *coach.Service, streaming bool) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		coachSvc:  coachSvc,
		streaming: streaming,
	}
}

// StreamResponse is one SSE chunk.
type StreamResponse struct {
	Event          string       `json:"event"`
	Content        string       `json:"content,omitempty"`
	ConversationID int64        `json:"conversationId,omitempty"`
	Finished       bool         `json:"finished,omitempty"`
	Error          string       `json:"error,omitempty"`
	Reply          *coach.Reply `json:"reply,omitempty"`
}

const (
	EventStart   = "start"
	EventDelta   = "delta"
	EventMessage = "message"
	EventEnd     = "end"
	EventError   = "error"
)

// RegisterRoutes mounts the streaming route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/stream/conversations/{id}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
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
	if strings.TrimSpace(payload.Content) == "" {
		utils.RespondError(w, http.StatusBadRequest, chatService.ErrEmptyMessage.Error())
		return
	}

	// Problems detectable up front get a plain status code; once the event
	// stream has started, failures are reported as error events.
	userID := middleware.OpenID(r.Context())
	conv, err := h.chatSvc.ConversationByID(r.Context(), userID, id)
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("load conversation for stream")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	case conv.IsArchived:
		utils.RespondError(w, http.StatusConflict, chatService.ErrConversationArchived.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, userID, id, payload.Content); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int64("conversation_id", id).Msg("stream ended with error")
	}
}

// HandleStreamRequest writes the reply to a user message as an event stream.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, userID string, conversationID int64, content string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := h.send(w, flusher, StreamResponse{
		Event:          EventStart,
		ConversationID: conversationID,
		Content:        h.coachSvc.Assistant().Name,
	}); err != nil {
		return err
	}

	reply, err := h.dispatch(ctx, w, flusher, userID, conversationID, content)
	if err != nil {
		h.sendError(w, flusher, conversationID, err)
		return err
	}

	if err := h.send(w, flusher, StreamResponse{
		Event:          EventMessage,
		ConversationID: conversationID,
		Content:        reply.Message.Content,
		Reply:          &reply,
	}); err != nil {
		return err
	}

	return h.send(w, flusher, StreamResponse{
		Event:          EventEnd,
		ConversationID: conversationID,
		Finished:       true,
	})
}

func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, userID string, conversationID int64, content string) (coach.Reply, error) {
	if !h.streaming {
		return h.coachSvc.Reply(ctx, userID, conversationID, content)
	}
	return h.coachSvc.Stream(ctx, userID, conversationID, content, func(delta string) error {
		if delta == "" {
			return nil
		}
		return h.send(w, flusher, StreamResponse{
			Event:          EventDelta,
			ConversationID: conversationID,
			Content:        delta,
		})
	})
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) error {
	return utils.SendSSEEvent(w, flusher, response.Event, response)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, conversationID int64, err error) {
	msg := "reply generation failed"
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		msg = "assistant is unavailable"
	case errors.Is(err, chatService.ErrConversationArchived):
		msg = err.Error()
	}
	_ = h.send(w, flusher, StreamResponse{
		Event:          EventError,
		ConversationID: conversationID,
		Error:          msg,
	})
}
