package notification

import (
	"testing"
	"time"
)

func TestPriorityLevels(t *testing.T) {
	cases := []struct {
		p    Priority
		want int
	}{
		{PriorityLow, 1},
		{PriorityMedium, 2},
		{PriorityHigh, 3},
		{PriorityUrgent, 4},
		{PriorityCritical, 5},
		{Priority("bogus"), 2}, // unknown defaults to medium
	}
	for _, tc := range cases {
		if got := tc.p.Level(); got != tc.want {
			t.Fatalf("Level(%s) = %d, want %d", tc.p, got, tc.want)
		}
	}
}

func TestPriorityFromLevelClamps(t *testing.T) {
	cases := []struct {
		level int
		want  Priority
	}{
		{0, PriorityLow},
		{1, PriorityLow},
		{3, PriorityHigh},
		{5, PriorityCritical},
		{9, PriorityCritical},
	}
	for _, tc := range cases {
		if got := PriorityFromLevel(tc.level); got != tc.want {
			t.Fatalf("PriorityFromLevel(%d) = %s, want %s", tc.level, got, tc.want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	n := New("t", "m", TypeTaskReminder, PriorityHigh)
	if n.ID == "" {
		t.Fatalf("New did not assign an id")
	}
	if n.Status != StatusPending {
		t.Fatalf("status = %s, want pending", n.Status)
	}
	if len(n.Channels) != 1 || n.Channels[0] != ChannelInApp {
		t.Fatalf("channels = %v, want [in_app]", n.Channels)
	}
	if n.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestExpiredAndDueNow(t *testing.T) {
	now := time.Now()
	n := New("t", "m", TypeTaskReminder, PriorityMedium)

	if n.Expired(now) {
		t.Fatalf("notification without expiry reported expired")
	}
	if !n.DueNow(now) {
		t.Fatalf("unscheduled notification should be due immediately")
	}

	past := now.Add(-time.Minute)
	n.ExpiresAt = &past
	if !n.Expired(now) {
		t.Fatalf("expired notification not detected")
	}

	n.ExpiresAt = nil
	future := now.Add(time.Hour)
	n.ScheduledTime = &future
	if n.DueNow(now) {
		t.Fatalf("notification scheduled for later reported due")
	}
	if !n.DueNow(future) {
		t.Fatalf("notification not due at its scheduled time")
	}
}

func TestSourceKind(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Notification)
		want string
	}{
		{"task", func(n *Notification) { n.SourceTaskID = "t" }, "task"},
		{"calendar", func(n *Notification) { n.SourceEventID = "e" }, "calendar"},
		{"conversation", func(n *Notification) { n.SourceConversationID = "c" }, "conversation"},
		{"system", func(n *Notification) {}, "system"},
		{"task wins over calendar", func(n *Notification) { n.SourceTaskID = "t"; n.SourceEventID = "e" }, "task"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := New("t", "m", TypeTaskReminder, PriorityMedium)
			tc.mod(&n)
			if got := n.SourceKind(); got != tc.want {
				t.Fatalf("SourceKind = %s, want %s", got, tc.want)
			}
		})
	}
}
