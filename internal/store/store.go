package store

import (
	"context"
	"time"
)

// AlertRecord is a persisted operator-raised alert.
type AlertRecord struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Operator persists operator configuration and raised alerts. The core
// treats it as fire-and-forget: a failed write is logged and the in-memory
// effect stands.
type Operator interface {
	LoadEntryEnabled(ctx context.Context) (bool, error)
	SaveEntryEnabled(ctx context.Context, enabled bool) error
	InsertAlert(ctx context.Context, alert AlertRecord) error
	ListAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// Noop satisfies Operator when no database is configured.
type Noop struct{}

// LoadEntryEnabled reports the default entry flag.
func (Noop) LoadEntryEnabled(context.Context) (bool, error) { return true, nil }

// SaveEntryEnabled discards the write.
func (Noop) SaveEntryEnabled(context.Context, bool) error { return nil }

// InsertAlert discards the write.
func (Noop) InsertAlert(context.Context, AlertRecord) error { return nil }

// ListAlerts reports no persisted alerts.
func (Noop) ListAlerts(context.Context, int) ([]AlertRecord, error) {
	return []AlertRecord{}, nil
}
