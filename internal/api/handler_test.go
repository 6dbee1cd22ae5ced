//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/identity"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t, nil)
	h := NewHandler(ts.repo, 30*time.Minute)

	rec := httptest.NewRecorder()
	h.GetMe(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without identity, got %d", rec.Code)
	}

	now := time.Now()
	if err := ts.repo.UpsertUser(context.Background(), &domain.User{
		UserID: testUser, Username: "analyst-89abcdef", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(identity.WithIdentity(req.Context(), testUser, "tab-3"))
	rec = httptest.NewRecorder()
	h.GetMe(rec, req)

	var got map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["username"] != "analyst-89abcdef" || got["session_id"] != "tab-3" {
		t.Errorf("Unexpected identity %v", got)
	}
	if got["session_ttl"] != float64(1800) {
		t.Errorf("Expected session_ttl 1800, got %v", got["session_ttl"])
	}
}
