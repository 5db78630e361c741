package notification

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Interval is a canonical reminder lead-time.
type Interval string

const (
	Minutes5  Interval = "5_minutes"
	Minutes15 Interval = "15_minutes"
	Minutes30 Interval = "30_minutes"
	Hour1     Interval = "1_hour"
	Hours2    Interval = "2_hours"
	Hours4    Interval = "4_hours"
	Hours8    Interval = "8_hours"
	Day1      Interval = "1_day"
	Days2     Interval = "2_days"
	Week1     Interval = "1_week"
)

// Minutes returns the lead-time in minutes, or 0 for an unknown interval.
func (i Interval) Minutes() int {
	switch i {
	case Minutes5:
		return 5
	case Minutes15:
		return 15
	case Minutes30:
		return 30
	case Hour1:
		return 60
	case Hours2:
		return 120
	case Hours4:
		return 240
	case Hours8:
		return 480
	case Day1:
		return 1440
	case Days2:
		return 2880
	case Week1:
		return 10080
	default:
		return 0
	}
}

// ReminderRule is a declarative matcher plus schedule. Rules are immutable
// configuration; many rules may match one item, each contributing its own
// reminder times.
type ReminderRule struct {
	ID   string
	Name string

	// Applicability filters. The rule matches an item only if the item
	// satisfies every non-empty filter; the tag filter passes on any overlap.
	ItemTypes  []string
	Priorities []Priority
	Tags       []string

	Intervals             []Interval
	CustomIntervalMinutes []int

	PreferredChannels []Channel

	// QuietHoursStart/End are hours of day (0-23) and may wrap midnight.
	// Nil means the rule has no quiet window.
	QuietHoursStart *int
	QuietHoursEnd   *int

	WeekendEnabled bool

	// Templates use {name} placeholders, see Render.
	TitleTemplate   string
	MessageTemplate string

	Enabled      bool
	MaxReminders int
}

// NewRule returns an enabled rule with the usual defaults
// (desktop+in-app channels, 1h/1d intervals, 3 reminders max).
func NewRule(name string) ReminderRule {
	return ReminderRule{
		ID:                uuid.NewString(),
		Name:              name,
		Intervals:         []Interval{Hour1, Day1},
		PreferredChannels: []Channel{ChannelDesktop, ChannelInApp},
		WeekendEnabled:    true,
		Enabled:           true,
		MaxReminders:      3,
	}
}

// Matches reports whether this rule should create reminders for an item.
func (r ReminderRule) Matches(itemType string, priority Priority, tags []string) bool {
	if !r.Enabled {
		return false
	}
	if len(r.ItemTypes) > 0 && !containsString(r.ItemTypes, itemType) {
		return false
	}
	if len(r.Priorities) > 0 {
		ok := false
		for _, p := range r.Priorities {
			if p == priority {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(r.Tags) > 0 && !anyOverlap(r.Tags, tags) {
		return false
	}
	return true
}

// QuietAt reports whether t falls inside the rule's quiet-hours window.
// A window that wraps midnight (start > end) is handled.
func (r ReminderRule) QuietAt(t time.Time) bool {
	if r.QuietHoursStart == nil || r.QuietHoursEnd == nil {
		return false
	}
	hour := t.Hour()
	start, end := *r.QuietHoursStart, *r.QuietHoursEnd
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}

// LeadTimes returns the rule's effective lead-times in minutes,
// canonical intervals first, then custom minutes.
func (r ReminderRule) LeadTimes() []int {
	out := make([]int, 0, len(r.Intervals)+len(r.CustomIntervalMinutes))
	for _, iv := range r.Intervals {
		if m := iv.Minutes(); m > 0 {
			out = append(out, m)
		}
	}
	out = append(out, r.CustomIntervalMinutes...)
	return out
}

// ReminderTimes computes when reminders should fire for an item due at
// `due`: only future times, ascending, capped to MaxReminders.
func (r ReminderRule) ReminderTimes(now, due time.Time) []time.Time {
	var times []time.Time
	for _, m := range r.LeadTimes() {
		at := due.Add(-time.Duration(m) * time.Minute)
		if at.After(now) {
			times = append(times, at)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	if r.MaxReminders > 0 && len(times) > r.MaxReminders {
		times = times[:r.MaxReminders]
	}
	return times
}

// Render substitutes {name} placeholders in the rule's templates.
// Empty templates fall back to plain defaults.
func (r ReminderRule) Render(vars map[string]string) (title, message string) {
	title = r.TitleTemplate
	if title == "" {
		title = "Reminder: {title}"
	}
	message = r.MessageTemplate
	if message == "" {
		message = "Don't forget: {title}"
	}
	for k, v := range vars {
		ph := "{" + k + "}"
		title = strings.ReplaceAll(title, ph, v)
		message = strings.ReplaceAll(message, ph, v)
	}
	return title, message
}

// DefaultRules is the built-in rule set used when the config declares none.
func DefaultRules() []ReminderRule {
	high := NewRule("High Priority Tasks")
	high.ItemTypes = []string{"task", "deadline"}
	high.Priorities = []Priority{PriorityHigh, PriorityUrgent}
	high.Intervals = []Interval{Hour1, Hours4, Day1}
	high.PreferredChannels = []Channel{ChannelDesktop, ChannelMobilePush}
	high.TitleTemplate = "High Priority: {title}"
	high.MessageTemplate = "Don't forget: {title} is due {due_relative}"

	meetings := NewRule("Meeting Reminders")
	meetings.ItemTypes = []string{"meeting", "event"}
	meetings.Intervals = []Interval{Minutes15, Hour1}
	meetings.TitleTemplate = "Meeting Reminder"
	meetings.MessageTemplate = "Meeting '{title}' starts in {time_until}"

	general := NewRule("General Task Reminders")
	general.ItemTypes = []string{"task"}
	general.PreferredChannels = []Channel{ChannelInApp}
	general.TitleTemplate = "Task Reminder"
	general.MessageTemplate = "Task '{title}' is due {due_relative}"

	overdue := NewRule("Overdue Items")
	overdue.ItemTypes = []string{"task", "deadline", "meeting"}
	overdue.Intervals = nil
	overdue.CustomIntervalMinutes = []int{0}
	overdue.PreferredChannels = []Channel{ChannelDesktop, ChannelMobilePush}
	overdue.TitleTemplate = "OVERDUE: {title}"
	overdue.MessageTemplate = "'{title}' was due {overdue_ago} ago and needs attention"
	overdue.MaxReminders = 5

	return []ReminderRule{high, meetings, general, overdue}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func anyOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
