package tracker

import (
	"testing"
	"time"
)

func TestComputeStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	th := Thresholds{Approaching: 24 * time.Hour, Imminent: time.Hour}

	cases := []struct {
		name      string
		deadline  time.Time
		pct       float64
		cancelled bool
		want      Status
	}{
		{"completed wins over overdue", now.Add(-time.Hour), 100, false, StatusCompleted},
		{"completed wins over cancelled", now.Add(time.Hour), 100, true, StatusCompleted},
		{"cancelled sticky", now.Add(48 * time.Hour), 50, true, StatusCancelled},
		{"overdue", now.Add(-time.Minute), 0, false, StatusOverdue},
		{"imminent just under an hour", now.Add(59 * time.Minute), 0, false, StatusImminent},
		{"approaching", now.Add(2 * time.Hour), 0, false, StatusApproaching},
		{"upcoming", now.Add(48 * time.Hour), 0, false, StatusUpcoming},
		{"exactly at deadline is not overdue", now, 0, false, StatusImminent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeStatus(tc.deadline, tc.pct, tc.cancelled, now, th)
			if got != tc.want {
				t.Fatalf("ComputeStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDueReminderTolerance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		minutesOut  int
		leadMinutes int
		want        bool
	}{
		{"exact", 60, 60, true},
		{"four early", 64, 60, true},
		{"five late", 55, 60, true},
		{"six early misses", 66, 60, false},
		{"six late misses", 54, 60, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := NewItem("x", "x", now.Add(time.Duration(tc.minutesOut)*time.Minute))
			if got := it.DueReminder(now, tc.leadMinutes); got != tc.want {
				t.Fatalf("DueReminder(%dm out, lead %dm) = %v, want %v", tc.minutesOut, tc.leadMinutes, got, tc.want)
			}
		})
	}
}

func TestNextReminderTimesFutureAscending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Deadline 2h away: only the 60m and 15m leads are still in the future.
	it := NewItem("x", "x", now.Add(2*time.Hour))

	times := it.NextReminderTimes(now)
	if len(times) != 2 {
		t.Fatalf("got %d reminder times, want 2 (%v)", len(times), times)
	}
	for i := 1; i < len(times); i++ {
		if !times[i-1].Before(times[i]) {
			t.Fatalf("times not ascending: %v", times)
		}
	}
	if !times[0].Equal(now.Add(time.Hour)) {
		t.Fatalf("first reminder = %v, want %v", times[0], now.Add(time.Hour))
	}
}

func TestRecordInteractionBounded(t *testing.T) {
	now := time.Now()
	it := NewItem("x", "x", now.Add(time.Hour))
	for i := 0; i < maxInteractionLog+10; i++ {
		it.RecordInteraction(now, "reminder_sent", nil)
	}
	if len(it.Interactions) != maxInteractionLog {
		t.Fatalf("interaction log = %d entries, want %d", len(it.Interactions), maxInteractionLog)
	}
}
