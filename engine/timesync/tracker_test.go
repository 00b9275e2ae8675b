package timesync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return NewTracker(WithClock(clock.Now)), clock
}

func TestTracker_Register(t *testing.T) {
	ctx := t.Context()

	t.Run("Should create an active record with both timestamps at now", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")

		record, ok := tracker.Status("svc")
		require.True(t, ok)
		assert.Equal(t, "svc", record.Service)
		assert.Equal(t, clock.Now(), record.LastSync)
		assert.Equal(t, clock.Now(), record.LastMemoryUpdate)
		assert.Equal(t, StatusActive, record.Status)
	})

	t.Run("Should reset history on re-registration", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		tracker.UpdateSync(ctx, "svc", true)

		clock.Advance(5 * time.Minute)
		tracker.Register(ctx, "svc")

		record, ok := tracker.Status("svc")
		require.True(t, ok)
		assert.Equal(t, clock.Now(), record.LastSync)
		assert.Equal(t, clock.Now(), record.LastMemoryUpdate)
		assert.Equal(t, StatusActive, record.Status)
		assert.Equal(t, 1, tracker.Len())
	})
}

func TestTracker_UpdateSync(t *testing.T) {
	ctx := t.Context()

	t.Run("Should advance only last sync for a heartbeat", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		registered := clock.Now()

		clock.Advance(10 * time.Second)
		ts := tracker.UpdateSync(ctx, "svc", false)
		assert.Equal(t, clock.Now(), ts)

		record, ok := tracker.Status("svc")
		require.True(t, ok)
		assert.Equal(t, clock.Now(), record.LastSync)
		assert.Equal(t, registered, record.LastMemoryUpdate)
	})

	t.Run("Should advance both timestamps for a memory update", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")

		clock.Advance(10 * time.Second)
		tracker.UpdateSync(ctx, "svc", true)

		record, ok := tracker.Status("svc")
		require.True(t, ok)
		assert.Equal(t, clock.Now(), record.LastSync)
		assert.Equal(t, clock.Now(), record.LastMemoryUpdate)
	})

	t.Run("Should register unknown services on first sync", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		tracker.UpdateSync(ctx, "newcomer", false)

		record, ok := tracker.Status("newcomer")
		require.True(t, ok)
		assert.Equal(t, StatusActive, record.Status)
	})

	t.Run("Should keep last memory update at or before last sync for heartbeats", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		for range 3 {
			clock.Advance(time.Second)
			tracker.UpdateSync(ctx, "svc", false)
		}
		record, _ := tracker.Status("svc")
		assert.False(t, record.LastMemoryUpdate.After(record.LastSync))
	})
}

func TestTracker_CheckStale(t *testing.T) {
	ctx := t.Context()

	t.Run("Should treat unknown services as stale", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		assert.True(t, tracker.CheckStale(ctx, "ghost"))
		_, ok := tracker.Status("ghost")
		assert.False(t, ok, "staleness check must not fabricate a record")
	})

	t.Run("Should stay active within the threshold", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		clock.Advance(59 * time.Second)
		assert.False(t, tracker.CheckStale(ctx, "svc"))
	})

	t.Run("Should flip active to stale past the threshold", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		clock.Advance(61 * time.Second)

		assert.True(t, tracker.CheckStale(ctx, "svc"))
		record, _ := tracker.Status("svc")
		assert.Equal(t, StatusStale, record.Status)

		// Repeated checks while stale are idempotent.
		assert.True(t, tracker.CheckStale(ctx, "svc"))
		record, _ = tracker.Status("svc")
		assert.Equal(t, StatusStale, record.Status)
	})

	t.Run("Should reset to active on the next sync", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		clock.Advance(2 * time.Minute)
		require.True(t, tracker.CheckStale(ctx, "svc"))

		tracker.UpdateSync(ctx, "svc", false)
		assert.False(t, tracker.CheckStale(ctx, "svc"))
		record, _ := tracker.Status("svc")
		assert.Equal(t, StatusActive, record.Status)
	})

	t.Run("Should honor a custom threshold", func(t *testing.T) {
		clock := newFakeClock()
		tracker := NewTracker(WithClock(clock.Now), WithStaleThreshold(5*time.Second))
		tracker.Register(ctx, "svc")
		clock.Advance(6 * time.Second)
		assert.True(t, tracker.CheckStale(ctx, "svc"))
	})

	t.Run("Should not touch a disconnected record", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		require.True(t, tracker.Deregister(ctx, "svc"))
		clock.Advance(2 * time.Minute)

		assert.True(t, tracker.CheckStale(ctx, "svc"))
		record, _ := tracker.Status("svc")
		assert.Equal(t, StatusDisconnected, record.Status)
	})
}

func TestTracker_AllStatuses(t *testing.T) {
	ctx := t.Context()

	t.Run("Should list records in registration order", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		for _, svc := range []string{"alpha", "beta", "gamma"} {
			tracker.Register(ctx, svc)
		}
		records := tracker.AllStatuses()
		require.Len(t, records, 3)
		assert.Equal(t, "alpha", records[0].Service)
		assert.Equal(t, "beta", records[1].Service)
		assert.Equal(t, "gamma", records[2].Service)
	})

	t.Run("Should return copies, not live records", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		records := tracker.AllStatuses()

		clock.Advance(time.Minute)
		tracker.UpdateSync(ctx, "svc", true)

		assert.NotEqual(t, clock.Now(), records[0].LastSync)
	})
}

func TestTracker_CompareTimestamps(t *testing.T) {
	ctx := t.Context()

	t.Run("Should flag a clearly newer client", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		t0 := clock.Now()

		cmp := tracker.CompareTimestamps("svc", t0.Add(5*time.Second))
		assert.True(t, cmp.IsClientNewer)
		assert.Equal(t, int64(5000), cmp.DiffMS)
		assert.InDelta(t, 5.0, cmp.DiffSeconds, 0.001)
		assert.True(t, cmp.NeedsSync)
	})

	t.Run("Should tolerate sub-second skew", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		t0 := clock.Now()

		cmp := tracker.CompareTimestamps("svc", t0.Add(200*time.Millisecond))
		assert.True(t, cmp.IsClientNewer)
		assert.Equal(t, int64(200), cmp.DiffMS)
		assert.False(t, cmp.NeedsSync)
	})

	t.Run("Should flag an older client as needing sync", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "svc")
		t0 := clock.Now()

		cmp := tracker.CompareTimestamps("svc", t0.Add(-3*time.Second))
		assert.False(t, cmp.IsClientNewer)
		assert.Equal(t, int64(-3000), cmp.DiffMS)
		assert.True(t, cmp.NeedsSync)
	})

	t.Run("Should default the server side to the epoch for unknown services", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		cmp := tracker.CompareTimestamps("ghost", clock.Now())
		assert.Equal(t, time.Unix(0, 0).UTC(), cmp.ServerTimestamp)
		assert.True(t, cmp.IsClientNewer)
		assert.True(t, cmp.NeedsSync)
	})
}

func TestTracker_LatestTimestamp(t *testing.T) {
	ctx := t.Context()

	t.Run("Should return false with no registered services", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		_, _, ok := tracker.LatestTimestamp()
		assert.False(t, ok)
	})

	t.Run("Should pick the service with the newest memory update", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "a")

		clock.Advance(time.Minute)
		tracker.UpdateSync(ctx, "b", true)

		service, ts, ok := tracker.LatestTimestamp()
		require.True(t, ok)
		assert.Equal(t, "b", service)
		assert.Equal(t, clock.Now(), ts)
	})

	t.Run("Should ignore plain heartbeats when picking the latest", func(t *testing.T) {
		tracker, clock := newTestTracker(t)
		tracker.Register(ctx, "a")
		clock.Advance(time.Second)
		tracker.Register(ctx, "b")
		expected := clock.Now()

		clock.Advance(time.Minute)
		tracker.UpdateSync(ctx, "a", false)

		service, ts, ok := tracker.LatestTimestamp()
		require.True(t, ok)
		assert.Equal(t, "b", service)
		assert.Equal(t, expected, ts)
	})
}

func TestTracker_Concurrency(t *testing.T) {
	ctx := t.Context()

	t.Run("Should survive concurrent updates and reads", func(t *testing.T) {
		tracker := NewTracker()
		var wg sync.WaitGroup
		services := []string{"a", "b", "c", "d"}
		for _, svc := range services {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 100 {
					tracker.UpdateSync(ctx, svc, i%2 == 0)
					tracker.CheckStale(ctx, svc)
					tracker.AllStatuses()
					tracker.LatestTimestamp()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, len(services), tracker.Len())
		for _, svc := range services {
			record, ok := tracker.Status(svc)
			require.True(t, ok)
			assert.Equal(t, StatusActive, record.Status)
		}
	})
}
