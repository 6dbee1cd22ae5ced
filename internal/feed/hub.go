// Package feed streams conversation entries to websocket clients.
package feed

import (
	"log/slog"
	"sync"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/session"
)

// DefaultBuffer is the number of entries a subscriber may fall behind by
// before it is dropped.
const DefaultBuffer = 64

// Subscription receives the entries published for one session.
type Subscription struct {
	key  session.Key
	ch   chan domain.ConversationEntry
	once sync.Once
}

// Entries is closed when the subscription ends.
func (s *Subscription) Entries() <-chan domain.ConversationEntry {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

var _ session.Closer = (*Hub)(nil)

// Hub fans out conversation entries to the subscribers of each session.
// A reset session is closed, so clients reconnect for the fresh backlog.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	active map[session.Key]map[*Subscription]struct{}
}

// NewHub creates a hub. A non-positive buffer uses DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		active: make(map[session.Key]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber for key.
func (h *Hub) Subscribe(key session.Key) *Subscription {
	sub := &Subscription{key: key, ch: make(chan domain.ConversationEntry, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[key]; !ok {
		h.active[key] = make(map[*Subscription]struct{})
	}
	h.active[key][sub] = struct{}{}
	slog.Info("Conversation feed subscribed", "user_id", key.UserID, "session_id", key.SessionID)
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscription) {
	subs, ok := h.active[sub.key]
	if !ok {
		return
	}
	if _, exists := subs[sub]; !exists {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.active, sub.key)
	}
	sub.close()
}

// Publish delivers entries to every subscriber of key. A subscriber whose
// buffer is full is dropped so publishers never block.
func (h *Hub) Publish(key session.Key, entries []domain.ConversationEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.active[key] {
		for _, entry := range entries {
			select {
			case sub.ch <- entry:
				continue
			default:
			}
			slog.Warn("Conversation feed subscriber too slow, dropping",
				"user_id", key.UserID, "session_id", key.SessionID)
			h.remove(sub)
			break
		}
	}
}

// Close ends every subscription of key.
func (h *Hub) Close(key session.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.active[key] {
		h.remove(sub)
	}
	slog.Info("Conversation feed closed", "user_id", key.UserID, "session_id", key.SessionID)
}

// Subscribers returns the number of subscribers of key.
func (h *Hub) Subscribers(key session.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[key])
}
