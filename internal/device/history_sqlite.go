package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteHistoryRepository implements HistoryStore on the device_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a history repository over db.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordEvent inserts one lifecycle event. A zero CreatedAt means now.
func (r *SQLiteHistoryRepository) RecordEvent(ctx context.Context, entry HistoryEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.SourceAgent == "" {
		entry.SourceAgent = DefaultSourceAgent
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_history (brand, device_id, event, source_agent, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Brand,
		entry.DeviceID,
		string(entry.Event),
		entry.SourceAgent,
		entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting device history: %w", err)
	}
	return nil
}

// GetHistory returns the newest events for key, newest first.
// limit defaults to 50 and is capped at 200.
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, key Key, limit int) ([]HistoryEntry, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}
	limit = clampHistoryLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, brand, device_id, event, source_agent, created_at
		 FROM device_history
		 WHERE brand = ? AND device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		key.Brand,
		key.DeviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var event string
		var createdAt int64

		if err := rows.Scan(&entry.ID, &entry.Brand, &entry.DeviceID, &event, &entry.SourceAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device history: %w", err)
		}
		entry.Event = Event(event)
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes events older than olderThan and returns the count.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().Add(-olderThan).UnixMilli()
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting device history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
