package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// GetDB returns the underlying DB instance
func (r *Repository) GetDB() *DB {
	return r.db
}

// rowScanner lets scan helpers work over both QueryRow results and rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// isNoRows reports whether err is the pgx no-rows sentinel
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ============================================================================
// SYSTEM EVENTS
// ============================================================================

// SaveSystemEvent persists an event-bus event for later inspection
func (r *Repository) SaveSystemEvent(ctx context.Context, event *SystemEvent) error {
	var data []byte
	if event.Data != nil {
		var err error
		data, err = json.Marshal(event.Data)
		if err != nil {
			return err
		}
	}
	query := `
		INSERT INTO system_events (event_type, source, message, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(ctx, query, event.EventType, event.Source, event.Message, data).
		Scan(&event.ID, &event.CreatedAt)
}

// GetRecentSystemEvents retrieves the most recent persisted events
func (r *Repository) GetRecentSystemEvents(ctx context.Context, limit int) ([]*SystemEvent, error) {
	query := `
		SELECT id, event_type, source, message, data, created_at
		FROM system_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SystemEvent
	for rows.Next() {
		event := &SystemEvent{}
		var data []byte
		if err := rows.Scan(&event.ID, &event.EventType, &event.Source, &event.Message, &data, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &event.Data); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ============================================================================
// SYSTEM SETTINGS
// ============================================================================

// GetSetting retrieves a single system setting; returns "" when unset
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting upserts a system setting
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.Pool.Exec(ctx, query, key, value)
	return err
}

// GetSettings retrieves all settings with the given key prefix
func (r *Repository) GetSettings(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT key, value FROM system_settings WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}
