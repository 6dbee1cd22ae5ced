package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/analyst-labs/internal/store"
)

// DefaultSweepInterval is how often the TTL worker looks for idle sessions.
const DefaultSweepInterval = 5 * time.Minute

// ExpireCallback is called after an idle session has been deleted.
type ExpireCallback func(key Key)

// StartTTLWorker runs a background goroutine that periodically deletes
// sessions idle for longer than ttl.
func StartTTLWorker(ctx context.Context, repo store.Repository, reg *Registry, ttl, interval time.Duration, onExpire ExpireCallback) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				SweepExpired(ctx, repo, reg, ttl, onExpire)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepExpired deletes every session idle for longer than ttl and returns
// how many were removed.
func SweepExpired(ctx context.Context, repo store.Repository, reg *Registry, ttl time.Duration, onExpire ExpireCallback) int {
	expired, err := repo.GetExpiredWorkflowSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to get expired sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("TTL worker found expired sessions", "count", len(expired))

	cleaned := 0
	for _, stored := range expired {
		key := Key{UserID: stored.UserID, SessionID: stored.SessionID}
		removed, err := reg.Expire(ctx, key, ttl)
		if err != nil {
			slog.Warn("TTL worker failed to delete session",
				"error", err,
				"user_id", key.UserID,
				"session_id", key.SessionID)
			continue
		}
		if !removed {
			continue
		}
		cleaned++
		if onExpire != nil {
			onExpire(key)
		}
	}

	slog.Info("TTL worker cleanup completed", "cleaned", cleaned)
	return cleaned
}
