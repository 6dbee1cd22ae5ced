// Package domain contains core domain types for the analysis assistant.
package domain

import (
	"time"
)

// User represents an anonymous device identity.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StoredSession is the persisted form of one workflow session.
// Snapshot holds the JSON encoding of the live session aggregate.
type StoredSession struct {
	UserID     string
	SessionID  string
	Stage      int
	Snapshot   string
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the session has been idle longer than ttl.
func (s *StoredSession) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastSeenAt) > ttl
}
