package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mentor/backend/internal/handler/handlertest"
)

type received struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
}

func dial(t *testing.T, f *handlertest.Fixture, conversationID string) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	New(f.Chat, nil, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + conversationID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	first := readMessage(t, conn)
	require.Equal(t, "connected", first.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketMessageRoundTrip(t *testing.T) {
	f := handlertest.New(`Logged. <system>track_metric: {"name":"sleep","value":7.5,"unit":"h"}</system>`)
	conn := dial(t, f, "c1")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "message",
		"data": map[string]string{"content": "I slept seven and a half hours"},
	}))

	msg := readMessage(t, conn)
	require.Equal(t, "reply", msg.Type)
	assert.Equal(t, "c1", msg.ConversationID)

	var reply struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Actions []json.RawMessage `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &reply))
	assert.Equal(t, "Logged.", reply.Message.Content)
	assert.Len(t, reply.Actions, 1)
}

func TestWebSocketRejectsUnknownTypeAndMismatch(t *testing.T) {
	f := handlertest.New("ok")
	conn := dial(t, f, "c2")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, string(msg.Data), "unsupported message type")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "conversationId": "other"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, string(msg.Data), "conversation mismatch")
	assert.Zero(t, f.Completer.Calls())
}

func TestWebSocketEmptyMessage(t *testing.T) {
	f := handlertest.New("ok")
	conn := dial(t, f, "c3")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "message",
		"data": map[string]string{"content": "  "},
	}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocketPing(t *testing.T) {
	f := handlertest.New("ok")
	conn := dial(t, f, "c4")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn).Type)
}
