package postgres

import (
	"context"
	"database/sql"
	"errors"

	"messhall-cloud/internal/store"
)

// OperatorStore persists operator state and alerts in postgres.
type OperatorStore struct {
	db *sql.DB
}

// NewOperatorStore constructs an OperatorStore.
func NewOperatorStore(db *sql.DB) (*OperatorStore, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	return &OperatorStore{db: db}, nil
}

// EnsureSchema creates the operator tables when missing.
func (s *OperatorStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS operator_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'info',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts (created_at DESC);
	`)
	return err
}

// LoadEntryEnabled reads the persisted entry flag, defaulting to enabled
// when no row exists.
func (s *OperatorStore) LoadEntryEnabled(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM operator_state WHERE key = 'entry_enabled'`,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return value == "1", nil
}

// SaveEntryEnabled upserts the entry flag.
func (s *OperatorStore) SaveEntryEnabled(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_state (key, value, updated_at)
		VALUES ('entry_enabled', $1, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, value)
	return err
}

// InsertAlert appends a raised alert.
func (s *OperatorStore) InsertAlert(ctx context.Context, alert store.AlertRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (type, title, message, severity)
		VALUES ($1, $2, $3, $4)
	`, alert.Type, alert.Title, alert.Message, alert.Severity)
	return err
}

// ListAlerts returns the newest limit alerts, most recent first.
func (s *OperatorStore) ListAlerts(ctx context.Context, limit int) ([]store.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, message, severity, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]store.AlertRecord, 0, limit)
	for rows.Next() {
		var alert store.AlertRecord
		if err := rows.Scan(&alert.ID, &alert.Type, &alert.Title, &alert.Message, &alert.Severity, &alert.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
