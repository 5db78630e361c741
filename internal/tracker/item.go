// Package tracker owns the mutable state of every monitored deadline item
// and the status state machine evaluated against the wall clock.
package tracker

import (
	"sort"
	"time"

	"remindd/internal/notification"
)

// Status of a deadline relative to "now".
type Status string

const (
	StatusUpcoming    Status = "upcoming"
	StatusApproaching Status = "approaching"
	StatusImminent    Status = "imminent"
	StatusOverdue     Status = "overdue"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether items in this status receive no further reminders.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Thresholds configure the status state machine.
type Thresholds struct {
	Approaching time.Duration // default 24h
	Imminent    time.Duration // default 60m
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Approaching <= 0 {
		t.Approaching = 24 * time.Hour
	}
	if t.Imminent <= 0 {
		t.Imminent = 60 * time.Minute
	}
	return t
}

// ComputeStatus is the pure transition function: completion wins over
// everything, explicit cancellation is sticky, and the rest derives from
// time-until-deadline.
func ComputeStatus(deadline time.Time, completionPct float64, cancelled bool, now time.Time, th Thresholds) Status {
	th = th.withDefaults()
	switch {
	case completionPct >= 100:
		return StatusCompleted
	case cancelled:
		return StatusCancelled
	case now.After(deadline):
		return StatusOverdue
	case deadline.Sub(now) < th.Imminent:
		return StatusImminent
	case deadline.Sub(now) < th.Approaching:
		return StatusApproaching
	default:
		return StatusUpcoming
	}
}

// DefaultReminderIntervals is the stock lead-time ladder in minutes:
// 1 week, 1 day, 4 hours, 1 hour, 15 minutes.
var DefaultReminderIntervals = []int{10080, 1440, 240, 60, 15}

const maxInteractionLog = 50

// reminderToleranceMinutes is the ± window around a lead-time inside which
// a reminder is considered due.
const reminderToleranceMinutes = 5

// Interaction is one entry of an item's bounded interaction log.
type Interaction struct {
	At      time.Time         `json:"at"`
	Action  string            `json:"action"`
	Details map[string]string `json:"details,omitempty"`
}

// Item is a trackable thing with a deadline.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`

	// ItemType is one of "task", "meeting", "deadline", "project".
	ItemType string                `json:"item_type"`
	Priority notification.Priority `json:"priority"`
	Tags     []string              `json:"tags,omitempty"`

	Status        Status  `json:"status"`
	CompletionPct float64 `json:"completion_percentage"`
	Cancelled     bool    `json:"cancelled,omitempty"`

	// ReminderIntervals are lead-times in minutes, descending.
	ReminderIntervals []int `json:"reminder_intervals"`

	SourceTaskID    string `json:"source_task_id,omitempty"`
	SourceEventID   string `json:"source_event_id,omitempty"`
	SourceProjectID string `json:"source_project_id,omitempty"`
	AssignedTo      string `json:"assigned_to,omitempty"`

	RemindersSent        int        `json:"reminders_sent"`
	LastReminderAt       *time.Time `json:"last_reminder_at,omitempty"`
	OverdueRemindersSent int        `json:"overdue_reminders_sent"`
	LastOverdueNoticeAt  *time.Time `json:"last_overdue_notice_at,omitempty"`

	Interactions []Interaction `json:"interactions,omitempty"`
}

// NewItem returns an item with the default reminder ladder and creation stamp.
func NewItem(id, title string, deadline time.Time) Item {
	return Item{
		ID:                id,
		Title:             title,
		Deadline:          deadline,
		CreatedAt:         time.Now(),
		ItemType:          "task",
		Priority:          notification.PriorityMedium,
		Status:            StatusUpcoming,
		ReminderIntervals: append([]int(nil), DefaultReminderIntervals...),
	}
}

// MinutesUntil returns whole minutes remaining until deadline (negative if past).
func (it Item) MinutesUntil(now time.Time) int {
	return int(it.Deadline.Sub(now).Minutes())
}

// Recompute updates Status against now.
func (it *Item) Recompute(now time.Time, th Thresholds) {
	it.Status = ComputeStatus(it.Deadline, it.CompletionPct, it.Cancelled, now, th)
}

// NextReminderTimes returns the future reminder timestamps implied by the
// item's own interval ladder, ascending.
func (it Item) NextReminderTimes(now time.Time) []time.Time {
	var times []time.Time
	for _, m := range it.ReminderIntervals {
		at := it.Deadline.Add(-time.Duration(m) * time.Minute)
		if at.After(now) {
			times = append(times, at)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

// DueReminder reports whether the given lead-time matches now within the
// ±5 minute tolerance window.
func (it Item) DueReminder(now time.Time, leadMinutes int) bool {
	diff := it.MinutesUntil(now) - leadMinutes
	if diff < 0 {
		diff = -diff
	}
	return diff <= reminderToleranceMinutes
}

// RecordInteraction appends to the bounded interaction log.
func (it *Item) RecordInteraction(now time.Time, action string, details map[string]string) {
	it.Interactions = append(it.Interactions, Interaction{At: now, Action: action, Details: details})
	if len(it.Interactions) > maxInteractionLog {
		it.Interactions = it.Interactions[len(it.Interactions)-maxInteractionLog:]
	}
}
