package storage

import (
	"context"
	"errors"
	"time"

	"remindd/internal/reminder"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON snapshot + journal
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "bolt": bbolt key/value file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the facility and lifecycle hooks.
type Store interface {
	PutPending(ctx context.Context, r PendingRecord) error
	DeletePending(ctx context.Context, handles ...int32) error
	ListPending(ctx context.Context) ([]PendingRecord, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	// PruneAudit drops audit entries older than before and returns how many went.
	PruneAudit(ctx context.Context, before time.Time) (int, error)

	Close() error
}

// PendingRecord is a reminder waiting for its fire time.
type PendingRecord struct {
	Handle  int32            `json:"handle"`
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	FireAt  time.Time        `json:"fire_at"`
	Payload reminder.Payload `json:"payload"`
}

// AuditEntry records one lifecycle event. Keep it compact and schema-stable.
type AuditEntry struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Event     string    `json:"event"`
	TaskID    string    `json:"task_id,omitempty"`
	Scheduled int       `json:"scheduled"`
	Canceled  int       `json:"canceled"`
	Detail    string    `json:"detail,omitempty"`
}
