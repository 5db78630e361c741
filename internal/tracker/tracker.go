package tracker

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"remindd/pkg/logx"
)

// Config bounds the tracker.
type Config struct {
	MaxItems              int           // default 1000
	Thresholds            Thresholds
	CleanupCompletedAfter time.Duration // default 7d
	CleanupCancelledAfter time.Duration // default 1d
}

func (c Config) withDefaults() Config {
	if c.MaxItems <= 0 {
		c.MaxItems = 1000
	}
	if c.CleanupCompletedAfter <= 0 {
		c.CleanupCompletedAfter = 7 * 24 * time.Hour
	}
	if c.CleanupCancelledAfter <= 0 {
		c.CleanupCancelledAfter = 24 * time.Hour
	}
	c.Thresholds = c.Thresholds.withDefaults()
	return c
}

// Tracker holds every monitored item behind a single mutex. The scheduler
// loop and request-side mutations may run concurrently; all operations are
// serialized here. Items are stored and handed out by value.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	items map[string]Item
	log   logx.Logger

	totalAdded     int
	totalCompleted int
}

func New(cfg Config, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{
		cfg:   cfg.withDefaults(),
		items: map[string]Item{},
		log:   log,
	}
}

// Add registers an item, recomputing its status first. It fails without
// side effects when the tracker is at capacity or the id already exists.
func (t *Tracker) Add(it Item) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.items) >= t.cfg.MaxItems {
		t.log.Warn("tracker at capacity, rejecting item", logx.Int("max_items", t.cfg.MaxItems), logx.String("id", it.ID))
		return false
	}
	if _, exists := t.items[it.ID]; exists {
		return false
	}
	if len(it.ReminderIntervals) == 0 {
		it.ReminderIntervals = append([]int(nil), DefaultReminderIntervals...)
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.Recompute(now, t.cfg.Thresholds)
	t.items[it.ID] = it
	t.totalAdded++
	t.log.Info("deadline item added", logx.String("id", it.ID), logx.String("title", it.Title), logx.Time("deadline", it.Deadline), logx.String("status", string(it.Status)))
	return true
}

// Update replaces an existing item. Unknown ids are a no-op false.
func (t *Tracker) Update(it Item) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.items[it.ID]
	if !ok {
		return false
	}
	it.Recompute(now, t.cfg.Thresholds)
	t.items[it.ID] = it
	if old.Status != it.Status {
		t.log.Info("item status changed", logx.String("id", it.ID), logx.String("from", string(old.Status)), logx.String("to", string(it.Status)))
	}
	return true
}

// Remove deletes an item. Unknown ids are a no-op false.
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	t.log.Debug("deadline item removed", logx.String("id", id))
	return true
}

// MarkCompleted sets the completion percentage and recomputes status.
func (t *Tracker) MarkCompleted(id string, pct float64) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.items[id]
	if !ok {
		return false
	}
	wasDone := it.Status == StatusCompleted
	it.CompletionPct = pct
	it.Recompute(now, t.cfg.Thresholds)
	if pct >= 100 {
		it.RecordInteraction(now, "completed", map[string]string{"completion": strconv.FormatFloat(pct, 'f', -1, 64)})
		if !wasDone {
			t.totalCompleted++
		}
	}
	t.items[id] = it
	return true
}

// Cancel marks an item cancelled. The flag is sticky until completion.
func (t *Tracker) Cancel(id string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.items[id]
	if !ok {
		return false
	}
	it.Cancelled = true
	it.Recompute(now, t.cfg.Thresholds)
	it.RecordInteraction(now, "cancelled", nil)
	t.items[id] = it
	return true
}

// Snooze extends the deadline by the given minutes and recomputes status.
func (t *Tracker) Snooze(id string, minutes int) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.items[id]
	if !ok {
		return false
	}
	old := it.Deadline
	it.Deadline = it.Deadline.Add(time.Duration(minutes) * time.Minute)
	it.Recompute(now, t.cfg.Thresholds)
	it.RecordInteraction(now, "snoozed", map[string]string{
		"minutes":      strconv.Itoa(minutes),
		"old_deadline": old.Format(time.RFC3339),
		"new_deadline": it.Deadline.Format(time.RFC3339),
	})
	t.items[id] = it
	t.log.Info("deadline snoozed", logx.String("id", id), logx.Int("minutes", minutes), logx.String("status", string(it.Status)))
	return true
}

// Get returns a copy of the item.
func (t *Tracker) Get(id string) (Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.items[id]
	return it, ok
}

// Len returns the number of monitored items.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// ByStatus returns items whose recomputed status equals s.
func (t *Tracker) ByStatus(s Status) []Item {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Item
	for id, it := range t.items {
		it.Recompute(now, t.cfg.Thresholds)
		t.items[id] = it
		if it.Status == s {
			out = append(out, it)
		}
	}
	return out
}

// Upcoming returns non-terminal items due within the window, soonest first.
func (t *Tracker) Upcoming(within time.Duration) []Item {
	now := time.Now()
	cutoff := now.Add(within)
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Item
	for id, it := range t.items {
		it.Recompute(now, t.cfg.Thresholds)
		t.items[id] = it
		if it.Status.Terminal() {
			continue
		}
		if !it.Deadline.After(cutoff) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// Overdue returns all overdue items.
func (t *Tracker) Overdue() []Item {
	return t.ByStatus(StatusOverdue)
}

// All returns a copy of every item, for snapshots and stats.
func (t *Tracker) All() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Item, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it)
	}
	return out
}

// Mutate applies fn to the item under the tracker lock. It is how the
// scheduler updates reminder counters atomically with status recomputes.
func (t *Tracker) Mutate(id string, fn func(*Item)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.items[id]
	if !ok {
		return false
	}
	fn(&it)
	t.items[id] = it
	return true
}

// RecomputeAll refreshes every item's status and returns the ids of items
// that newly transitioned into OVERDUE from a non-terminal state.
func (t *Tracker) RecomputeAll(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var newlyOverdue []string
	for id, it := range t.items {
		old := it.Status
		it.Recompute(now, t.cfg.Thresholds)
		t.items[id] = it
		if it.Status == StatusOverdue && old != StatusOverdue && !old.Terminal() {
			newlyOverdue = append(newlyOverdue, id)
		}
	}
	sort.Strings(newlyOverdue)
	return newlyOverdue
}

// Cleanup removes COMPLETED items older than CleanupCompletedAfter and
// CANCELLED items older than CleanupCancelledAfter. Age is measured from
// creation, matching the retention contract. Returns the removed count.
func (t *Tracker) Cleanup(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, it := range t.items {
		var keepFor time.Duration
		switch it.Status {
		case StatusCompleted:
			keepFor = t.cfg.CleanupCompletedAfter
		case StatusCancelled:
			keepFor = t.cfg.CleanupCancelledAfter
		default:
			continue
		}
		if now.Sub(it.CreatedAt) > keepFor {
			delete(t.items, id)
			removed++
		}
	}
	if removed > 0 {
		t.log.Info("cleanup pass removed items", logx.Int("removed", removed))
	}
	return removed
}

// Counters returns lifetime counters for the stats surface.
func (t *Tracker) Counters() (added, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalAdded, t.totalCompleted
}

// Export returns all items for persistence.
func (t *Tracker) Export() []Item { return t.All() }

// Import replaces tracker contents from a snapshot, respecting capacity.
func (t *Tracker) Import(items []Item) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range items {
		if len(t.items) >= t.cfg.MaxItems {
			t.log.Warn("snapshot import truncated at capacity", logx.Int("max_items", t.cfg.MaxItems))
			break
		}
		it.Recompute(now, t.cfg.Thresholds)
		t.items[it.ID] = it
	}
}
