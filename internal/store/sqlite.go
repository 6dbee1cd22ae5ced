package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workflow_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		stage INTEGER NOT NULL DEFAULT 0,
		snapshot_json TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_workflow_sessions_last_seen ON workflow_sessions(last_seen_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "upsert user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

// GetWorkflowSession retrieves a session snapshot.
func (s *SQLiteStore) GetWorkflowSession(ctx context.Context, userID, sessionID string) (*domain.StoredSession, error) {
	query := `
		SELECT user_id, session_id, stage, snapshot_json, last_seen_at, created_at, updated_at
		FROM workflow_sessions WHERE user_id = ? AND session_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, sessionID)
	session, err := scanWorkflowSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow session: %w", err)
	}
	return session, nil
}

// UpsertWorkflowSession creates or replaces a session snapshot. CreatedAt is
// kept from the first insert.
func (s *SQLiteStore) UpsertWorkflowSession(ctx context.Context, session *domain.StoredSession) error {
	query := `
		INSERT INTO workflow_sessions (
			user_id, session_id, stage, snapshot_json, last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			stage = excluded.stage,
			snapshot_json = excluded.snapshot_json,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`

	now := time.Now()
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	lastSeen := session.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = now
	}

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "upsert workflow session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.UserID, session.SessionID, session.Stage, session.Snapshot,
			lastSeen.Unix(), createdAt.Unix(), now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert workflow session: %w", err)
		}
		return nil
	})
}

// DeleteWorkflowSession removes a session snapshot.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) DeleteWorkflowSession(ctx context.Context, userID, sessionID string) error {
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "delete workflow session", func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM workflow_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete workflow session %s/%s: %w", userID, sessionID, err)
	}
	return nil
}

// GetExpiredWorkflowSessions lists sessions idle for longer than ttl.
func (s *SQLiteStore) GetExpiredWorkflowSessions(ctx context.Context, ttl time.Duration) ([]*domain.StoredSession, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT user_id, session_id, stage, snapshot_json, last_seen_at, created_at, updated_at
		FROM workflow_sessions WHERE last_seen_at < ?`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired workflow sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.StoredSession
	for rows.Next() {
		session, err := scanWorkflowSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired workflow session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired workflow sessions: %w", err)
	}
	return sessions, nil
}

// PurgeWorkflowSessions removes every session snapshot.
func (s *SQLiteStore) PurgeWorkflowSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workflow_sessions`)
	if err != nil {
		return 0, fmt.Errorf("purge workflow sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflowSession(row rowScanner) (*domain.StoredSession, error) {
	var session domain.StoredSession
	var lastSeen, createdAt, updatedAt int64
	if err := row.Scan(
		&session.UserID, &session.SessionID, &session.Stage, &session.Snapshot,
		&lastSeen, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	session.LastSeenAt = time.Unix(lastSeen, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}
