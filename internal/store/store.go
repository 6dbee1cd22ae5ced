// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/analyst-labs/internal/domain"
)

// Repository persists anonymous users and workflow session snapshots.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// GetWorkflowSession retrieves a session snapshot. It returns nil when absent.
	GetWorkflowSession(ctx context.Context, userID, sessionID string) (*domain.StoredSession, error)

	// UpsertWorkflowSession creates or replaces a session snapshot.
	UpsertWorkflowSession(ctx context.Context, session *domain.StoredSession) error

	// DeleteWorkflowSession removes a session snapshot.
	DeleteWorkflowSession(ctx context.Context, userID, sessionID string) error

	// GetExpiredWorkflowSessions lists sessions idle for longer than ttl.
	GetExpiredWorkflowSessions(ctx context.Context, ttl time.Duration) ([]*domain.StoredSession, error)

	// PurgeWorkflowSessions removes every session snapshot.
	PurgeWorkflowSessions(ctx context.Context) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
