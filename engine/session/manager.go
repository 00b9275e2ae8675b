// Package session persists opaque user session payloads in the shared cache
// store under the session: namespace. Sessions are refreshed wholesale on
// every update; there is no partial merge.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/pkg/config"
)

const keyPrefix = "session:"

// DefaultTTL is the session lifetime: seven days, refreshed on every write.
const DefaultTTL = 7 * 24 * time.Hour

// Manager manages user sessions on top of the cache store.
type Manager struct {
	store *cache.Store
	ttl   time.Duration
}

// NewManager creates a session manager. A ttl <= 0 falls back to DefaultTTL.
func NewManager(store *cache.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// FromAppConfig creates a session manager configured from the centralized app
// configuration.
func FromAppConfig(store *cache.Store, appConfig *config.Config) *Manager {
	return NewManager(store, appConfig.Session.TTL)
}

func sessionKey(userID string) string {
	return keyPrefix + userID
}

// Create stores the session payload for the user and returns the session key.
// The payload is caller-controlled and stored as-is.
func (m *Manager) Create(ctx context.Context, userID string, data json.RawMessage) (string, bool) {
	key := sessionKey(userID)
	ok := m.store.Set(ctx, key, data, m.ttl)
	return key, ok
}

// Get retrieves the session payload for the user, or false when none exists.
func (m *Manager) Get(ctx context.Context, userID string) (json.RawMessage, bool) {
	var data json.RawMessage
	if !m.store.Get(ctx, sessionKey(userID), &data) {
		return nil, false
	}
	return data, true
}

// Update replaces the session payload wholesale, resetting the TTL.
func (m *Manager) Update(ctx context.Context, userID string, data json.RawMessage) bool {
	_, ok := m.Create(ctx, userID, data)
	return ok
}

// Delete removes the user's session.
func (m *Manager) Delete(ctx context.Context, userID string) bool {
	return m.store.Delete(ctx, sessionKey(userID))
}

// ActiveSessions returns the user IDs of all live sessions. Empty when the
// store is disabled.
func (m *Manager) ActiveSessions(ctx context.Context) []string {
	keys := m.store.Keys(ctx, keyPrefix+"*")
	users := make([]string, 0, len(keys))
	for _, key := range keys {
		users = append(users, strings.TrimPrefix(key, keyPrefix))
	}
	return users
}
