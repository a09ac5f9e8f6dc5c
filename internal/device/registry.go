package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory directory of devices currently believed
// reachable, keyed by brand/deviceId.
//
// Every method takes the same mutex, so mutations are serialised with each
// other and with Snapshot and EvictStale. Returned records are copies.
type Registry struct {
	mu      sync.RWMutex
	records map[Key]*Record
	now     func() time.Time
	logger  Logger
}

// NewRegistry creates an empty registry using the wall clock.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[Key]*Record),
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// SetClock replaces the time source. Tests use it to control lastSeen.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Now returns the registry's current time.
func (r *Registry) Now() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now()
}

// Upsert merges patch into the record for key, creating it with defaults if
// absent. lastSeen is refreshed to the current time and never moves
// backwards. created reports whether a new record was added.
func (r *Registry) Upsert(key Key, patch Patch) (rec Record, created bool, err error) {
	if !key.Valid() {
		return Record{}, false, fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.upsertLocked(key, patch)
}

func (r *Registry) upsertLocked(key Key, patch Patch) (Record, bool, error) {
	now := r.now()

	existing, ok := r.records[key]
	if !ok {
		existing = &Record{
			Brand:       key.Brand,
			DeviceID:    key.DeviceID,
			Protocol:    DefaultProtocol,
			SourceAgent: DefaultSourceAgent,
		}
		r.records[key] = existing
		r.logger.Debug("device registered", "key", key.String())
	}

	patch.apply(existing)
	if now.After(existing.LastSeen) {
		existing.LastSeen = now
	}

	return *existing, !ok, nil
}

// AnnouncementResult describes one applied inventory entry.
type AnnouncementResult struct {
	Record  Record
	Created bool
}

// BulkReplaceFromAnnouncement upserts every listed device with its announced
// metadata and SourceAgent set to agentID, under a single lock so readers
// see the announcement as one step. Entries without a brand or device ID
// are skipped and counted.
func (r *Registry) BulkReplaceFromAnnouncement(agentID string, devices []Announced) (applied []AnnouncementResult, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied = make([]AnnouncementResult, 0, len(devices))
	for _, d := range devices {
		key := d.Key()
		if !key.Valid() {
			skipped++
			continue
		}
		rec, created, _ := r.upsertLocked(key, d.patch(agentID)) //nolint:errcheck // key validated above
		applied = append(applied, AnnouncementResult{Record: rec, Created: created})
	}
	return applied, skipped
}

// Remove deletes key unconditionally. It returns the removed record and
// whether it existed.
func (r *Registry) Remove(key Key) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return Record{}, false
	}
	delete(r.records, key)
	r.logger.Debug("device removed", "key", key.String())
	return *rec, true
}

// Get returns a copy of the record for key.
func (r *Registry) Get(key Key) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, key.String())
	}
	return *rec, nil
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns copies of all records ordered by key.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sortRecords(out)
	return out
}

// EvictStale removes every record whose now-lastSeen exceeds timeout and
// returns the removed records ordered by key. A record exactly timeout old
// is kept.
func (r *Registry) EvictStale(now time.Time, timeout time.Duration) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Record
	for key, rec := range r.records {
		if now.Sub(rec.LastSeen) > timeout {
			removed = append(removed, *rec)
			delete(r.records, key)
		}
	}
	sortRecords(removed)
	return removed
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Brand != recs[j].Brand {
			return recs[i].Brand < recs[j].Brand
		}
		return recs[i].DeviceID < recs[j].DeviceID
	})
}
