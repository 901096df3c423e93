package http

import (
	"database/sql"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/auth"
	"github.com/arotu/chat-server/internal/chat"
	"github.com/arotu/chat-server/internal/core"
	"github.com/arotu/chat-server/internal/presence"
	"github.com/arotu/chat-server/internal/store"
	"github.com/arotu/chat-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		return sqlite.ApplySchema(db)
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// newTestRouter wires a full router over an in-memory store. The
// returned hub and chat service share the store, so REST writes are
// visible to WebSocket clients and vice versa.
func newTestRouter(t *testing.T, st store.Store) (*Deps, *gin.Engine) {
	t.Helper()

	disabledLogger := zerolog.New(nil)
	authService := createTestAuthService(t, st, "test-secret")
	registry := presence.NewMemoryRegistry()
	hub := core.NewHub(registry, st, st, &disabledLogger)
	chatService := chat.NewService(st, hub, &disabledLogger)

	deps := Deps{
		Store:       st,
		AuthService: authService,
		ChatService: chatService,
		Hub:         hub,
		Log:         &disabledLogger,
	}

	return &deps, NewRouter(deps)
}
