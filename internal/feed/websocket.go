package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/identity"
	"github.com/ashureev/analyst-labs/internal/session"
	"github.com/ashureev/analyst-labs/internal/workflow"
)

const writeTimeout = 10 * time.Second

// Backlog loads the current state of a session.
type Backlog interface {
	Get(ctx context.Context, key session.Key) (*workflow.Session, error)
}

// Message is one frame sent to the client.
type Message struct {
	Type  string                    `json:"type"`
	Entry *domain.ConversationEntry `json:"entry,omitempty"`
	Stage string                    `json:"stage,omitempty"`
}

// Frame types.
const (
	MessageEntry  = "entry"
	MessageSynced = "synced"
	MessageClosed = "closed"
)

// WebSocketHandler serves the live conversation feed of the caller's session.
type WebSocketHandler struct {
	hub           *Hub
	backlog       Backlog
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new feed handler.
func NewWebSocketHandler(hub *Hub, backlog Backlog, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		backlog:       backlog,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP upgrades the request, sends the conversation so far, then
// streams new entries until the client leaves or the session expires.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := session.Key{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	}
	slog.Info("Conversation feed request", "user_id", key.UserID, "session_id", key.SessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", key.UserID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", key.UserID)
		}
	}()

	// Subscribe before reading the backlog so no entry falls between them.
	sub := h.hub.Subscribe(key)
	defer h.hub.Unsubscribe(sub)
	slog.Debug("Conversation feed attached", "user_id", key.UserID, "session_id", key.SessionID,
		"subscribers", h.hub.Subscribers(key))

	ctx := ws.CloseRead(r.Context())

	s, err := h.backlog.Get(ctx, key)
	if err != nil {
		slog.Error("Failed to load conversation backlog", "error", err, "user_id", key.UserID)
		_ = ws.Close(websocket.StatusInternalError, "failed to load session")
		return
	}

	sent := make(map[string]struct{}, len(s.Conversation))
	for i := range s.Conversation {
		entry := s.Conversation[i]
		sent[entry.ID] = struct{}{}
		if err := writeJSON(ctx, ws, Message{Type: MessageEntry, Entry: &entry}); err != nil {
			slog.Debug("Failed to send backlog entry", "error", err, "user_id", key.UserID)
			return
		}
	}
	if err := writeJSON(ctx, ws, Message{Type: MessageSynced, Stage: s.Stage.String()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Conversation feed closed by client", "user_id", key.UserID)
			return
		case entry, ok := <-sub.Entries():
			if !ok {
				_ = writeJSON(ctx, ws, Message{Type: MessageClosed})
				return
			}
			if _, dup := sent[entry.ID]; dup {
				continue
			}
			if err := writeJSON(ctx, ws, Message{Type: MessageEntry, Entry: &entry}); err != nil {
				slog.Debug("Failed to send conversation entry", "error", err, "user_id", key.UserID)
				return
			}
		}
	}
}

// checkOrigin validates the Origin header against the configured frontend.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
