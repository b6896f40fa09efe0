package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	chatService "github.com/zhouzirui/z-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/z-mentor/backend/pkg/utils"
)

// Handler delivers a mentor turn over Server-Sent Events.
type Handler struct {
	chatSvc  *chatService.Service
	personas persona.Store
	logger   *zap.Logger
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, personas persona.Store, logger *zap.Logger) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		personas: personas,
		logger:   observability.Named(logger, "http.stream"),
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event          string `json:"event"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Data           any    `json:"data,omitempty"`
	Degraded       bool   `json:"degraded,omitempty"`
	Finished       bool   `json:"finished,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式对话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{conversationID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userMessage := strings.TrimSpace(r.URL.Query().Get("message"))
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, conversationID, userMessage); err != nil {
		h.logger.Warn("stream request failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

// HandleStreamRequest runs one turn and emits start, message, action, end events.
// Once headers are sent, failures are reported as an error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, conversationID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errors.New("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	mentorName := h.mentorName(ctx, conversationID)
	h.send(w, flusher, StreamResponse{
		Event:          "start",
		ConversationID: conversationID,
		Content:        fmt.Sprintf("%s:", mentorName),
	})

	reply, err := h.chatSvc.Send(ctx, conversationID, userMessage)
	if err != nil {
		h.send(w, flusher, StreamResponse{
			Event:          "error",
			ConversationID: conversationID,
			Error:          err.Error(),
		})
		return err
	}

	h.send(w, flusher, StreamResponse{
		Event:          "message",
		ConversationID: conversationID,
		Content:        reply.Message.Content,
		Degraded:       reply.Degraded,
	})

	for _, result := range reply.Actions {
		h.send(w, flusher, StreamResponse{
			Event:          "action",
			ConversationID: conversationID,
			Data:           result,
		})
	}
	if len(reply.Rejected) > 0 {
		h.send(w, flusher, StreamResponse{
			Event:          "rejected",
			ConversationID: conversationID,
			Data:           reply.Rejected,
		})
	}

	h.send(w, flusher, StreamResponse{
		Event:          "end",
		ConversationID: conversationID,
		Finished:       true,
	})
	return nil
}

// mentorName 在会话尚未创建时返回默认导师的名字。
func (h *Handler) mentorName(ctx context.Context, conversationID string) string {
	personaID := persona.DefaultID
	if conv, err := h.chatSvc.GetConversation(ctx, conversationID); err == nil {
		personaID = conv.PersonaID
	}
	return h.personas.Get(ctx, personaID).Name
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEChunk(w, flusher, response); err != nil {
		h.logger.Debug("failed to write sse chunk", zap.String("event", response.Event), zap.Error(err))
	}
}
