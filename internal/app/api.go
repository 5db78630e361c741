package app

import (
	"time"

	"remindd/internal/notification"
)

// User-facing operations. These close the engagement loop: every read,
// dismiss, or action feeds an interaction sample back into the
// prioritizer so future scoring learns from it.

// MarkRead marks a delivered notification as read.
func (a *App) MarkRead(id string) bool {
	n, ok := a.dlv.MarkRead(id)
	if !ok {
		return false
	}
	a.pri.RecordInteraction(n, "read", responseSecs(n), time.Now())
	return true
}

// DismissNotification dismisses a notification without acting on it.
func (a *App) DismissNotification(id string) bool {
	n, ok := a.dlv.Dismiss(id)
	if !ok {
		return false
	}
	a.pri.RecordInteraction(n, "dismissed", responseSecs(n), time.Now())
	return true
}

// ActOnNotification records that the user engaged with one of the
// notification's actions (view, complete, snooze).
func (a *App) ActOnNotification(id string) bool {
	n, ok := a.dlv.Get(id)
	if !ok {
		return false
	}
	a.pri.RecordInteraction(n, "acted", responseSecs(n), time.Now())
	return true
}

// IgnoreNotification records that a notification went stale without any
// user response. Ignores drag engagement down, so repeatedly ignored
// notification shapes eventually get suppressed.
func (a *App) IgnoreNotification(id string) bool {
	n, ok := a.dlv.Get(id)
	if !ok {
		return false
	}
	a.pri.RecordInteraction(n, "ignored", responseSecs(n), time.Now())
	return true
}

// SnoozeItem pushes an item's deadline out. minutes <= 0 uses the
// configured default snooze.
func (a *App) SnoozeItem(id string, minutes int) bool {
	if minutes <= 0 {
		minutes = a.dlv.Preferences().SnoozeMinutes
	}
	if !a.trk.Snooze(id, minutes) {
		return false
	}
	a.mon.CheckNow()
	return true
}

// CompleteItem marks an item fully done.
func (a *App) CompleteItem(id string) bool {
	return a.trk.MarkCompleted(id, 100)
}

func responseSecs(n notification.Notification) float64 {
	if n.SentAt == nil {
		return 0
	}
	return time.Since(*n.SentAt).Seconds()
}
