package device

import (
	"context"
	"fmt"
	"time"
)

// Event is a device lifecycle transition recorded in the history store.
type Event string

// Lifecycle events.
const (
	EventRegistered Event = "registered" // first message for a new key
	EventAnnounced  Event = "announced"  // listed in a relay inventory
	EventDeleted    Event = "deleted"    // removed on client request
	EventEvicted    Event = "evicted"    // removed by the sweeper
)

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	switch e {
	case EventRegistered, EventAnnounced, EventDeleted, EventEvicted:
		return true
	default:
		return false
	}
}

// HistoryEntry is one recorded lifecycle event.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	Brand       string    `json:"brand"`
	DeviceID    string    `json:"deviceId"`
	Event       Event     `json:"event"`
	SourceAgent string    `json:"espId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HistoryStore persists lifecycle events.
type HistoryStore interface {
	RecordEvent(ctx context.Context, entry HistoryEntry) error
	GetHistory(ctx context.Context, key Key, limit int) ([]HistoryEntry, error)
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewHistoryEntry builds an entry for rec at the given time.
func NewHistoryEntry(rec Record, event Event, at time.Time) HistoryEntry {
	return HistoryEntry{
		Brand:       rec.Brand,
		DeviceID:    rec.DeviceID,
		Event:       event,
		SourceAgent: rec.SourceAgent,
		CreatedAt:   at,
	}
}

// defaultHistoryQueue bounds the async writer backlog.
const defaultHistoryQueue = 256

// HistoryWriter queues lifecycle events and writes them to a HistoryStore
// from a single goroutine, so callers on the message path never wait on disk.
type HistoryWriter struct {
	store  HistoryStore
	queue  chan HistoryEntry
	logger Logger
}

// NewHistoryWriter wraps store. A queueSize <= 0 uses the default.
func NewHistoryWriter(store HistoryStore, queueSize int) *HistoryWriter {
	if queueSize <= 0 {
		queueSize = defaultHistoryQueue
	}
	return &HistoryWriter{
		store:  store,
		queue:  make(chan HistoryEntry, queueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for write failures.
func (w *HistoryWriter) SetLogger(logger Logger) {
	w.logger = logger
}

// Enqueue schedules entry for writing. It never blocks; a full queue drops
// the entry and returns ErrHistoryQueueFull. Safe on a nil receiver.
func (w *HistoryWriter) Enqueue(entry HistoryEntry) error {
	if w == nil {
		return nil
	}
	select {
	case w.queue <- entry:
		return nil
	default:
		w.logger.Warn("history queue full, dropping event",
			"key", NewKey(entry.Brand, entry.DeviceID).String(),
			"event", entry.Event,
		)
		return ErrHistoryQueueFull
	}
}

// Run drains the queue until ctx is cancelled, then writes whatever is
// still buffered.
func (w *HistoryWriter) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-w.queue:
			w.write(ctx, entry)
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

func (w *HistoryWriter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case entry := <-w.queue:
			w.write(ctx, entry)
		default:
			return
		}
	}
}

func (w *HistoryWriter) write(ctx context.Context, entry HistoryEntry) {
	if err := w.store.RecordEvent(ctx, entry); err != nil {
		w.logger.Error("recording device history failed",
			"key", NewKey(entry.Brand, entry.DeviceID).String(),
			"event", entry.Event,
			"error", err,
		)
	}
}

// validateEntry checks the fields every store requires.
func validateEntry(entry HistoryEntry) error {
	key := NewKey(entry.Brand, entry.DeviceID)
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}
	if !entry.Event.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, entry.Event)
	}
	return nil
}
