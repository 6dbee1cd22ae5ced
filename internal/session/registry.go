// Package session keeps workflow sessions in the store and serializes
// mutations per session.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/analyst-labs/internal/agent"
	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/store"
	"github.com/ashureev/analyst-labs/internal/workflow"
)

// Key identifies one session: an anonymous user plus a per-tab session id.
type Key struct {
	UserID    string
	SessionID string
}

func (k Key) String() string {
	return k.UserID + ":" + k.SessionID
}

// Publisher receives conversation entries appended by an operation.
type Publisher interface {
	Publish(key Key, entries []domain.ConversationEntry)
}

// Closer is implemented by publishers that hold per-session state. Close
// is called when an operation discards the conversation.
type Closer interface {
	Close(key Key)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(key Key, entries []domain.ConversationEntry)

// Publish calls f.
func (f PublisherFunc) Publish(key Key, entries []domain.ConversationEntry) { f(key, entries) }

// ConversationLogPublisher writes new entries to a conversation audit log.
func ConversationLogPublisher(log agent.ConversationLogger) Publisher {
	return PublisherFunc(func(key Key, entries []domain.ConversationEntry) {
		for _, entry := range entries {
			direction := "inbound"
			if entry.Role == domain.RoleUser {
				direction = "outbound"
			}
			log.Log(agent.ConversationLogEvent{
				Timestamp:  entry.At.Format(time.RFC3339Nano),
				UserID:     key.UserID,
				SessionID:  key.SessionID,
				Channel:    "workflow",
				Direction:  direction,
				EventType:  "conversation_entry",
				Role:       string(entry.Role),
				ContentRaw: entry.Content,
				Meta: map[string]any{
					"entry_id": entry.ID,
				},
			})
		}
	})
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Registry loads, mutates and saves sessions. Operations on the same key
// run one at a time; different keys proceed independently.
type Registry struct {
	repo       store.Repository
	publishers []Publisher
	now        func() time.Time

	mu    sync.Mutex
	locks map[Key]*keyLock
}

// NewRegistry creates a registry backed by repo.
func NewRegistry(repo store.Repository, publishers ...Publisher) *Registry {
	return &Registry{
		repo:       repo,
		publishers: publishers,
		now:        time.Now,
		locks:      make(map[Key]*keyLock),
	}
}

func (r *Registry) lock(key Key) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// Do runs fn against the session for key and saves the result, whether or
// not fn failed, since an operation may record entries before failing.
// New conversation entries are then handed to the publishers. When fn
// shrank the conversation, as a reset does, publishers implementing Closer
// are closed for key instead.
func (r *Registry) Do(ctx context.Context, key Key, fn func(*workflow.Session) error) (*workflow.Session, error) {
	unlock := r.lock(key)
	defer unlock()

	s, stored, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	before := len(s.Conversation)

	opErr := fn(s)

	if err := r.save(ctx, key, s, stored); err != nil {
		if opErr != nil {
			slog.Error("failed to save session after failed operation",
				"user_id", key.UserID, "session_id", key.SessionID, "error", err)
			return s, opErr
		}
		return s, err
	}

	switch {
	case len(s.Conversation) < before:
		for _, p := range r.publishers {
			if c, ok := p.(Closer); ok {
				c.Close(key)
			}
		}
	case len(s.Conversation) > before:
		entries := append([]domain.ConversationEntry(nil), s.Conversation[before:]...)
		for _, p := range r.publishers {
			p.Publish(key, entries)
		}
	}
	return s, opErr
}

// Get returns the session for key without modifying it. Unknown keys yield
// a fresh session.
func (r *Registry) Get(ctx context.Context, key Key) (*workflow.Session, error) {
	unlock := r.lock(key)
	defer unlock()

	s, _, err := r.load(ctx, key)
	return s, err
}

// Expire removes the session for key if it is still idle for longer than
// ttl once the session lock is held. It reports whether it was removed.
func (r *Registry) Expire(ctx context.Context, key Key, ttl time.Duration) (bool, error) {
	unlock := r.lock(key)
	defer unlock()

	stored, err := r.repo.GetWorkflowSession(ctx, key.UserID, key.SessionID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if stored == nil || !stored.Expired(ttl, r.now()) {
		return false, nil
	}
	if err := r.repo.DeleteWorkflowSession(ctx, key.UserID, key.SessionID); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Registry) load(ctx context.Context, key Key) (*workflow.Session, *domain.StoredSession, error) {
	stored, err := r.repo.GetWorkflowSession(ctx, key.UserID, key.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if stored == nil {
		return workflow.New(), nil, nil
	}
	s := workflow.New()
	if err := json.Unmarshal([]byte(stored.Snapshot), s); err != nil {
		return nil, nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	return s, stored, nil
}

func (r *Registry) save(ctx context.Context, key Key, s *workflow.Session, prev *domain.StoredSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	now := r.now()
	record := &domain.StoredSession{
		UserID:     key.UserID,
		SessionID:  key.SessionID,
		Stage:      int(s.Stage),
		Snapshot:   string(raw),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if prev != nil {
		record.CreatedAt = prev.CreatedAt
	}
	if err := r.repo.UpsertWorkflowSession(ctx, record); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
