// Package notification holds the value types flowing through the reminder
// pipeline: notifications, their channels/priorities/statuses, reminder
// rules and user delivery preferences.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies what a notification is about.
type Type string

const (
	TypeTaskReminder     Type = "task_reminder"
	TypeDeadlineWarning  Type = "deadline_warning"
	TypeMeetingReminder  Type = "meeting_reminder"
	TypeCalendarConflict Type = "calendar_conflict"
	TypeTaskOverdue      Type = "task_overdue"
	TypeProjectUpdate    Type = "project_update"
	TypeSystemAlert      Type = "system_alert"
	TypeIdeaSuggestion   Type = "idea_suggestion"
	TypeProgressUpdate   Type = "progress_update"
	TypeAssignment       Type = "assignment_notification"
)

// Priority is the five-level ordered priority scale.
//
// The ordinal mapping (1..5) is the one the prioritizer nudges by at most
// one level per adjustment; keep Level/PriorityFromLevel in sync.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Level returns the numeric ordinal of a priority (low=1 .. critical=5).
// Unknown values map to medium.
func (p Priority) Level() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	case PriorityCritical:
		return 5
	default:
		return 2
	}
}

// PriorityFromLevel is the inverse of Level. Out-of-range levels clamp.
func PriorityFromLevel(level int) Priority {
	switch {
	case level <= 1:
		return PriorityLow
	case level == 2:
		return PriorityMedium
	case level == 3:
		return PriorityHigh
	case level == 4:
		return PriorityUrgent
	default:
		return PriorityCritical
	}
}

// Channel identifies a delivery channel kind.
type Channel string

const (
	ChannelDesktop    Channel = "desktop"
	ChannelMobilePush Channel = "mobile_push"
	ChannelEmail      Channel = "email"
	ChannelSMS        Channel = "sms"
	ChannelInApp      Channel = "in_app"
	ChannelSystemTray Channel = "system_tray"
	ChannelWebhook    Channel = "webhook"
	ChannelTelegram   Channel = "telegram"
)

// Status is the delivery lifecycle of a notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusRead       Status = "read"
	StatusDismissed  Status = "dismissed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusSuppressed Status = "suppressed"
)

// Action is a choice presented alongside a notification (view, snooze, ...).
// Kind is one of "url", "callback", "dismiss", "snooze".
type Action struct {
	ID      string            `json:"id"`
	Label   string            `json:"label"`
	Kind    string            `json:"kind"`
	Data    map[string]string `json:"data,omitempty"`
	Primary bool              `json:"primary,omitempty"`
}

// Notification is the unit dispatched to the user. It is a value object:
// the scheduler creates it, the prioritizer adjusts it, the delivery
// manager finalizes its status.
type Notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`

	Type     Type     `json:"type"`
	Priority Priority `json:"priority"`

	Channels      []Channel  `json:"channels"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`

	Actions []Action `json:"actions,omitempty"`

	// Correlation back to the source item.
	SourceTaskID         string `json:"source_task_id,omitempty"`
	SourceEventID        string `json:"source_event_id,omitempty"`
	SourceConversationID string `json:"source_conversation_id,omitempty"`

	Tags []string `json:"tags,omitempty"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

// New returns a pending notification with defaults filled in
// (uuid identifier, in-app channel, created-at stamp).
func New(title, message string, typ Type, priority Priority) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Type:      typ,
		Priority:  priority,
		Channels:  []Channel{ChannelInApp},
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// Expired reports whether the notification must no longer be dispatched.
func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// DueNow reports whether the notification may be dispatched at `now`:
// not expired, and past its scheduled time if one is set.
func (n Notification) DueNow(now time.Time) bool {
	if n.Expired(now) {
		return false
	}
	if n.ScheduledTime != nil {
		return !now.Before(*n.ScheduledTime)
	}
	return true
}

// AddAction appends an action button.
func (n *Notification) AddAction(id, label, kind string, data map[string]string, primary bool) {
	n.Actions = append(n.Actions, Action{ID: id, Label: label, Kind: kind, Data: data, Primary: primary})
}

// SourceKind classifies where the notification came from, used by the
// prioritizer when building interaction samples.
func (n Notification) SourceKind() string {
	switch {
	case n.SourceTaskID != "":
		return "task"
	case n.SourceEventID != "":
		return "calendar"
	case n.SourceConversationID != "":
		return "conversation"
	default:
		return "system"
	}
}
