package storage

import (
	"context"
	"errors"
	"time"

	"remindd/internal/prioritizer"
	"remindd/internal/tracker"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (atomic JSON snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Counters are the monitor's lifetime aggregates, persisted with the items.
type Counters struct {
	ItemsMonitored  int       `json:"items_monitored"`
	RemindersSent   int       `json:"reminders_sent"`
	OverdueDetected int       `json:"overdue_detected"`
	ItemsCompleted  int       `json:"items_completed"`
	LastCleanup     time.Time `json:"last_cleanup"`
}

// State is the full persisted snapshot: every monitored item, aggregate
// counters, and the prioritizer's learning state. Timestamps serialize as
// RFC 3339 via encoding/json.
type State struct {
	Items       []tracker.Item       `json:"items"`
	Counters    Counters             `json:"counters"`
	Prioritizer prioritizer.Snapshot `json:"prioritizer"`
	SavedAt     time.Time            `json:"saved_at"`
}

// Store persists and restores pipeline state. Writes must be atomic:
// a crashed save never corrupts the previous snapshot.
type Store interface {
	SaveState(ctx context.Context, st State) error
	LoadState(ctx context.Context) (State, bool, error)
	Close() error
}
