package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashureev/analyst-labs/internal/identity"
)

const limiterIdleTTL = 30 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each anonymous user a fixed number of requests per window.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu    sync.Mutex
	users map[string]*userLimiter
}

// NewRateLimiter creates a limiter granting requests per window, refilled evenly.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return &RateLimiter{
		limit: rate.Every(window / time.Duration(requests)),
		burst: requests,
		now:   time.Now,
		users: make(map[string]*userLimiter),
	}
}

// Allow reports whether userID may make a request now.
func (l *RateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	l.evict(now)
	return u.limiter.AllowN(now, 1)
}

// evict drops limiters of users idle long enough to be back at full burst.
func (l *RateLimiter) evict(now time.Time) {
	for id, u := range l.users {
		if now.Sub(u.lastSeen) > limiterIdleTTL {
			delete(l.users, id)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := identity.UserIDFromContext(r.Context())
		if !l.Allow(userID) {
			slog.Warn("Rate limit exceeded", "user_id", userID, "path", r.URL.Path)
			retry := time.Duration(float64(time.Second) / float64(l.limit))
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
