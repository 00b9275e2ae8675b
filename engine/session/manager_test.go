package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/pkg/config"
)

func newTestManager(t testing.TB) (*Manager, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewManager(cache.NewStoreWithClient(client), 0), s
}

func newTestStore(t testing.TB, mr *miniredis.Miniredis) *cache.Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewStoreWithClient(client)
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := t.Context()
	m, mr := newTestManager(t)

	t.Run("Should create and retrieve a session", func(t *testing.T) {
		payload := json.RawMessage(`{"theme":"dark","lang":"en"}`)
		key, ok := m.Create(ctx, "user-1", payload)
		require.True(t, ok)
		assert.Equal(t, "session:user-1", key)

		got, found := m.Get(ctx, "user-1")
		require.True(t, found)
		assert.JSONEq(t, string(payload), string(got))
	})

	t.Run("Should overwrite the payload wholesale on update", func(t *testing.T) {
		_, ok := m.Create(ctx, "user-2", json.RawMessage(`{"a":1,"b":2}`))
		require.True(t, ok)
		require.True(t, m.Update(ctx, "user-2", json.RawMessage(`{"a":9}`)))

		got, found := m.Get(ctx, "user-2")
		require.True(t, found)
		assert.JSONEq(t, `{"a":9}`, string(got))
	})

	t.Run("Should delete a session", func(t *testing.T) {
		_, ok := m.Create(ctx, "user-3", json.RawMessage(`{}`))
		require.True(t, ok)
		require.True(t, m.Delete(ctx, "user-3"))

		_, found := m.Get(ctx, "user-3")
		assert.False(t, found)
	})

	t.Run("Should miss for unknown users", func(t *testing.T) {
		_, found := m.Get(ctx, "nobody")
		assert.False(t, found)
	})

	t.Run("Should expire sessions after the TTL", func(t *testing.T) {
		short := NewManager(newTestStore(t, mr), time.Second)
		_, ok := short.Create(ctx, "user-4", json.RawMessage(`{}`))
		require.True(t, ok)

		mr.FastForward(1100 * time.Millisecond)
		_, found := short.Get(ctx, "user-4")
		assert.False(t, found)
	})
}

func TestManager_ActiveSessions(t *testing.T) {
	ctx := t.Context()
	m, _ := newTestManager(t)

	t.Run("Should list user IDs of live sessions", func(t *testing.T) {
		_, ok := m.Create(ctx, "alice", json.RawMessage(`{}`))
		require.True(t, ok)
		_, ok = m.Create(ctx, "bob", json.RawMessage(`{}`))
		require.True(t, ok)

		assert.ElementsMatch(t, []string{"alice", "bob"}, m.ActiveSessions(ctx))
	})
}

func TestManager_FromAppConfig(t *testing.T) {
	ctx := t.Context()

	t.Run("Should apply the configured session TTL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Session.TTL = time.Second
		m := FromAppConfig(newTestStore(t, mr), cfg)

		_, ok := m.Create(ctx, "user-5", json.RawMessage(`{}`))
		require.True(t, ok)
		mr.FastForward(1100 * time.Millisecond)
		_, found := m.Get(ctx, "user-5")
		assert.False(t, found)
	})
}

func TestManager_DisabledStore(t *testing.T) {
	ctx := t.Context()
	m := NewManager(&cache.Store{}, 0)

	t.Run("Should fail soft on every operation", func(t *testing.T) {
		_, ok := m.Create(ctx, "user", json.RawMessage(`{}`))
		assert.False(t, ok)
		_, found := m.Get(ctx, "user")
		assert.False(t, found)
		assert.False(t, m.Update(ctx, "user", json.RawMessage(`{}`)))
		assert.False(t, m.Delete(ctx, "user"))
		assert.Empty(t, m.ActiveSessions(ctx))
	})
}
