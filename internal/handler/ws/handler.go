// Package ws serves mentor conversations over a WebSocket connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	chatService "github.com/zhouzirui/z-mentor/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler WebSocket对话处理器
type Handler struct {
	chatSvc  *chatService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器。allowOrigin 为空时接受所有来源。
func New(chatSvc *chatService.Service, allowOrigin func(origin string) bool, logger *zap.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  observability.Named(logger, "http.ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowOrigin == nil || origin == "" || allowOrigin(origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{conversationID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
}

type textPayload struct {
	Content string `json:"content"`
}

type outgoingMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Data           any    `json:"data,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	h.logger.Info("connection opened", zap.String("conversation_id", conversationID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c)

	h.send(c, conversationID, "connected", nil)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("read failed", zap.String("conversation_id", conversationID), zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.ConversationID != "" && msg.ConversationID != conversationID {
			h.sendError(c, conversationID, "conversation mismatch")
			continue
		}
		conversationID = h.handleMessage(ctx, c, conversationID, &msg)
	}
}

// handleMessage returns the conversation id to use for the rest of the connection.
func (h *Handler) handleMessage(ctx context.Context, c *conn, conversationID string, msg *inboundMessage) string {
	switch msg.Type {
	case "message":
		var payload textPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, conversationID, "invalid message payload")
			return conversationID
		}
		reply, err := h.chatSvc.Send(ctx, conversationID, payload.Content)
		if err != nil {
			if errors.Is(err, chatService.ErrEmptyMessage) {
				h.sendError(c, conversationID, err.Error())
			} else {
				h.logger.Error("turn failed", zap.String("conversation_id", conversationID), zap.Error(err))
				h.sendError(c, conversationID, "failed to process message")
			}
			return conversationID
		}
		h.send(c, conversationID, "reply", reply)
	case "reset":
		conv, err := h.chatSvc.ResetConversation(ctx, conversationID)
		if err != nil {
			h.sendError(c, conversationID, err.Error())
			return conversationID
		}
		h.send(c, conv.ID, "reset", conv)
		return conv.ID
	case "ping":
		h.send(c, conversationID, "pong", nil)
	default:
		h.sendError(c, conversationID, "unsupported message type: "+strings.TrimSpace(msg.Type))
	}
	return conversationID
}

func (h *Handler) send(c *conn, conversationID, msgType string, data any) {
	msg := outgoingMessage{
		Type:           msgType,
		ConversationID: conversationID,
		Data:           data,
		Timestamp:      time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		h.logger.Debug("write failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (h *Handler) sendError(c *conn, conversationID, message string) {
	h.send(c, conversationID, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
