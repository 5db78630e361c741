// Package monitor runs the periodic deadline check loop: it recomputes
// item statuses, fires rule-based reminders and overdue notices through
// the delivery manager, and snapshots state to storage.
package monitor

import (
	"time"

	"remindd/internal/tracker"
)

// Config controls the monitor loop.
type Config struct {
	Enabled bool

	// CheckInterval is how often the loop evaluates all items.
	CheckInterval time.Duration // default 1m

	Thresholds tracker.Thresholds

	// MaxRemindersPerItem caps lead-time reminders per item over its
	// lifetime. ReminderCooldown is the minimum gap between two
	// reminders for the same item.
	MaxRemindersPerItem int           // default 10
	ReminderCooldown    time.Duration // default 5m

	// Overdue items get periodic follow-up notices after the initial
	// escalation, up to MaxOverdueReminders.
	OverdueReminderInterval time.Duration // default 24h
	MaxOverdueReminders     int           // default 5

	// SaveInterval is how often state is snapshotted to storage.
	SaveInterval time.Duration // default 15m
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	if c.MaxRemindersPerItem <= 0 {
		c.MaxRemindersPerItem = 10
	}
	if c.ReminderCooldown <= 0 {
		c.ReminderCooldown = 5 * time.Minute
	}
	if c.OverdueReminderInterval <= 0 {
		c.OverdueReminderInterval = 24 * time.Hour
	}
	if c.MaxOverdueReminders <= 0 {
		c.MaxOverdueReminders = 5
	}
	if c.SaveInterval <= 0 {
		c.SaveInterval = 15 * time.Minute
	}
	return c
}

// Stats is the monitor's activity surface: cumulative counters plus a
// point-in-time breakdown of the tracked items.
type Stats struct {
	Ticks          int64      `json:"ticks"`
	RemindersSent  int64      `json:"reminders_sent"`
	OverdueNotices int64      `json:"overdue_notices"`
	Suppressed     int64      `json:"suppressed"`
	ItemsCleaned   int64      `json:"items_cleaned"`
	LastTick       *time.Time `json:"last_tick,omitempty"`
	LastSave       *time.Time `json:"last_save,omitempty"`

	ItemsMonitored int                    `json:"items_monitored"`
	ByStatus       map[tracker.Status]int `json:"by_status,omitempty"`
	Upcoming24h    int                    `json:"upcoming_24h"`
	Overdue        int                    `json:"overdue"`

	// LearningConfidence is the prioritizer's confidence in its learned
	// engagement patterns, 0..1.
	LearningConfidence float64 `json:"learning_confidence"`
}
