package notification

import "time"

// Preferences are the user's global delivery settings. The delivery
// manager consults them before any channel is touched.
type Preferences struct {
	Enabled bool

	QuietHoursEnabled bool
	QuietHoursStart   int // hour of day, 0-23
	QuietHoursEnd     int // may be lower than start (wraps midnight)

	WeekendNotifications bool

	MinimumPriority Priority

	UrgentOverrideQuietHours   bool
	CriticalOverrideQuietHours bool

	DefaultIntervals    []Interval
	MaxRemindersPerItem int
	SnoozeMinutes       int
}

// DefaultPreferences mirrors the stock configuration: notifications on,
// quiet hours 22:00-08:00, medium floor, urgent/critical override quiet hours.
func DefaultPreferences() Preferences {
	return Preferences{
		Enabled:                    true,
		QuietHoursEnabled:          true,
		QuietHoursStart:            22,
		QuietHoursEnd:              8,
		WeekendNotifications:       true,
		MinimumPriority:            PriorityMedium,
		UrgentOverrideQuietHours:   true,
		CriticalOverrideQuietHours: true,
		DefaultIntervals:           []Interval{Hour1, Day1},
		MaxRemindersPerItem:        3,
		SnoozeMinutes:              15,
	}
}

// Allow decides whether a notification may be delivered at `now`.
// The reason names the failing check so a filtered send is distinguishable
// from a delivery error in logs.
func (p Preferences) Allow(n Notification, now time.Time) (bool, string) {
	if !p.Enabled {
		return false, "notifications disabled"
	}
	if n.Priority.Level() < p.MinimumPriority.Level() {
		return false, "below minimum priority"
	}
	if p.QuietHoursEnabled && p.quietAt(now) {
		if n.Priority == PriorityUrgent && p.UrgentOverrideQuietHours {
			return true, ""
		}
		if n.Priority == PriorityCritical && p.CriticalOverrideQuietHours {
			return true, ""
		}
		return false, "quiet hours"
	}
	if !p.WeekendNotifications && isWeekend(now) {
		return false, "weekend notifications disabled"
	}
	return true, ""
}

func (p Preferences) quietAt(t time.Time) bool {
	hour := t.Hour()
	if p.QuietHoursStart <= p.QuietHoursEnd {
		return hour >= p.QuietHoursStart && hour <= p.QuietHoursEnd
	}
	return hour >= p.QuietHoursStart || hour <= p.QuietHoursEnd
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
