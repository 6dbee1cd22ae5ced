// Package identity ties each request to an anonymous analyst and the
// browser tab it came from. Together they select one workflow session.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/store"
)

const (
	AnonCookieName        = "analyst_anon_id"
	SessionHeaderName     = "X-Session-ID"
	DefaultSessionIDValue = "default"

	anonCookieMaxAge = 30 * 24 * time.Hour
	// lastSeenInterval bounds how often a returning analyst's row is written.
	lastSeenInterval = time.Minute
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// WithIdentity returns a context carrying the given user and tab session.
// An invalid session id falls back to DefaultSessionIDValue.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sanitizeSessionID(sessionID))
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

func newAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// analystName is the display name shown for an anonymous analyst.
func analystName(userID string) string {
	if len(userID) > 13 {
		return "analyst-" + userID[len(userID)-8:]
	}
	return "analyst"
}

// touchAnalyst records the analyst's visit. New analysts get a row; known
// ones have LastSeenAt refreshed once it is older than lastSeenInterval.
func touchAnalyst(ctx context.Context, repo store.Repository, userID string, now time.Time) error {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get analyst: %w", err)
	}
	if user == nil {
		user = &domain.User{
			UserID:    userID,
			Username:  analystName(userID),
			CreatedAt: now,
		}
		slog.Info("New analyst", "user_id", userID)
	} else if now.Sub(user.LastSeenAt) < lastSeenInterval {
		return nil
	}
	user.LastSeenAt = now
	user.UpdatedAt = now
	if err := repo.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("save analyst: %w", err)
	}
	return nil
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  now.Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// anonIDFromRequest returns the analyst id from the cookie, minting a new
// one when the cookie is missing or malformed.
func anonIDFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil {
		if isValidAnonID(c.Value) {
			return c.Value, nil
		}
		slog.Debug("Ignoring malformed analyst cookie")
	}
	return newAnonID()
}

// sessionIDFromRequest reads the tab session from the header, or from the
// session_id query parameter that websocket clients use.
func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sid
}

// Middleware resolves the analyst and tab session of each request. The
// analyst cookie is renewed on every response.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return middleware(repo, isDev, time.Now)
}

func middleware(repo store.Repository, isDev bool, clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := clock()
			userID, err := anonIDFromRequest(r)
			if err != nil {
				slog.Error("failed to establish analyst identity", "error", err)
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}
			setAnonCookie(w, userID, isDev, now)

			if err := touchAnalyst(r.Context(), repo, userID, now); err != nil {
				slog.Error("failed to record analyst visit", "user_id", userID, "error", err)
				http.Error(w, `{"error":"failed to initialize anonymous user"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithIdentity(r.Context(), userID, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
