// Package timesync tracks timestamp synchronization across a distributed set
// of collaborating services. Each registered service carries its last sync
// and last meaningful-update timestamps plus a derived freshness status; the
// registry is purely in-process and answers "is this service's view of shared
// state fresh?" for its dependents.
package timesync

import (
	"context"
	"sync"
	"time"

	"github.com/memgate/memgate/pkg/logger"
)

// Status describes a service's freshness.
type Status string

const (
	StatusActive Status = "active"
	StatusStale  Status = "stale"
	// StatusDisconnected is only produced by explicit deregistration; the
	// lazy staleness check never infers it from elapsed time.
	StatusDisconnected Status = "disconnected"
)

// DefaultStaleThreshold is how long a service may go without syncing before
// it is considered stale.
const DefaultStaleThreshold = 60 * time.Second

// needsSyncTolerance is the comparison slack: client and server timestamps
// within this window of each other do not require a re-fetch.
const needsSyncTolerance = time.Second

// Record is one service's synchronization state.
type Record struct {
	Service          string    `json:"service"`
	LastSync         time.Time `json:"last_sync"`
	LastMemoryUpdate time.Time `json:"last_memory_update"`
	Status           Status    `json:"status"`
}

// Comparison is the result of comparing a client timestamp against the
// server's last meaningful update for a service.
type Comparison struct {
	Service         string    `json:"service"`
	ClientTimestamp time.Time `json:"client_timestamp"`
	ServerTimestamp time.Time `json:"server_timestamp"`
	IsClientNewer   bool      `json:"is_client_newer"`
	DiffMS          int64     `json:"diff_ms"`
	DiffSeconds     float64   `json:"diff_seconds"`
	NeedsSync       bool      `json:"needs_sync"`
}

// Tracker is a registry of service sync records. All operations are safe for
// concurrent use; a single mutex guards every read-modify-write so partial
// interleavings cannot clobber a fresher record.
type Tracker struct {
	mu             sync.Mutex
	records        map[string]*Record
	order          []string
	staleThreshold time.Duration
	now            func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStaleThreshold overrides the staleness threshold.
func WithStaleThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.staleThreshold = d
		}
	}
}

// WithClock injects the time source. Tests use this to advance time.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates an empty tracker. The zero-option tracker uses the
// default threshold and the wall clock.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		records:        make(map[string]*Record),
		staleThreshold: DefaultStaleThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's current time. Exposed so HTTP responses stamp
// with the same clock the records use.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// Register upserts a record for the service with both timestamps set to now
// and status active. Re-registration resets the service's history.
func (t *Tracker) Register(ctx context.Context, service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registerLocked(service)
	logger.FromContext(ctx).Info("registered service", "service", service)
}

func (t *Tracker) registerLocked(service string) {
	now := t.now()
	if _, exists := t.records[service]; !exists {
		t.order = append(t.order, service)
	}
	t.records[service] = &Record{
		Service:          service,
		LastSync:         now,
		LastMemoryUpdate: now,
		Status:           StatusActive,
	}
}

// UpdateSync records a sync event for the service, registering it first when
// unknown. LastSync always advances to now; LastMemoryUpdate advances only
// when the event marks a change to the service's underlying data. The status
// returns to active unconditionally. Returns the recorded timestamp.
func (t *Tracker) UpdateSync(ctx context.Context, service string, isMemoryUpdate bool) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, exists := t.records[service]
	if !exists {
		t.registerLocked(service)
		record = t.records[service]
		logger.FromContext(ctx).Info("registered service", "service", service)
	}
	now := t.now()
	record.LastSync = now
	if isMemoryUpdate {
		record.LastMemoryUpdate = now
	}
	record.Status = StatusActive
	logger.FromContext(ctx).Debug("sync recorded",
		"service", service,
		"timestamp", now.Format(time.RFC3339Nano),
		"memory_update", isMemoryUpdate,
	)
	return now
}

// CheckStale reports whether the service's last sync is older than the
// threshold. Unknown services are treated as stale. The first stale read
// flips an active record to stale as a side effect; repeated reads while
// still stale are idempotent.
func (t *Tracker) CheckStale(ctx context.Context, service string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, exists := t.records[service]
	if !exists {
		return true
	}
	diff := t.now().Sub(record.LastSync)
	isStale := diff > t.staleThreshold
	if isStale && record.Status == StatusActive {
		record.Status = StatusStale
		logger.FromContext(ctx).Warn("service went stale",
			"service", service,
			"last_sync", record.LastSync.Format(time.RFC3339Nano),
		)
	}
	return isStale
}

// Status returns a copy of the service's record.
func (t *Tracker) Status(service string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, exists := t.records[service]
	if !exists {
		return Record{}, false
	}
	return *record, true
}

// AllStatuses returns copies of every record in registration order. The
// order is process-local, not a wire contract.
func (t *Tracker) AllStatuses() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.order))
	for _, service := range t.order {
		out = append(out, *t.records[service])
	}
	return out
}

// Len returns the number of registered services.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// CompareTimestamps compares a client timestamp against the service's last
// meaningful update. For unknown services the server side defaults to the
// Unix epoch, producing a very large positive diff. NeedsSync is true when
// the two sides differ by more than one second in either direction.
func (t *Tracker) CompareTimestamps(service string, clientTS time.Time) Comparison {
	t.mu.Lock()
	serverTS := time.Unix(0, 0).UTC()
	if record, exists := t.records[service]; exists {
		serverTS = record.LastMemoryUpdate
	}
	t.mu.Unlock()
	diff := clientTS.Sub(serverTS)
	diffMS := diff.Milliseconds()
	return Comparison{
		Service:         service,
		ClientTimestamp: clientTS,
		ServerTimestamp: serverTS,
		IsClientNewer:   diffMS > 0,
		DiffMS:          diffMS,
		DiffSeconds:     float64(diffMS) / 1000,
		NeedsSync:       diff > needsSyncTolerance || diff < -needsSyncTolerance,
	}
}

// LatestTimestamp returns the service with the most recent meaningful update.
// Ties break by iteration order, which is not deterministic. The boolean is
// false when no services are registered.
func (t *Tracker) LatestTimestamp() (string, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.records) == 0 {
		return "", time.Time{}, false
	}
	var latestService string
	var latestTS time.Time
	first := true
	for service, record := range t.records {
		if first || record.LastMemoryUpdate.After(latestTS) {
			latestService = service
			latestTS = record.LastMemoryUpdate
			first = false
		}
	}
	return latestService, latestTS, true
}

// Deregister marks the service disconnected so dependents stop trusting its
// data. The record is kept for inspection. Returns false for unknown names.
func (t *Tracker) Deregister(ctx context.Context, service string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, exists := t.records[service]
	if !exists {
		return false
	}
	record.Status = StatusDisconnected
	logger.FromContext(ctx).Info("deregistered service", "service", service)
	return true
}
