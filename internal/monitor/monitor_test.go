package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/delivery"
	"remindd/internal/eventbus"
	"remindd/internal/notification"
	"remindd/internal/prioritizer"
	"remindd/internal/storage"
	"remindd/internal/tracker"
	"remindd/pkg/logx"
)

type captureChannel struct {
	mu   sync.Mutex
	kind notification.Channel
	sent []notification.Notification
}

func (c *captureChannel) Kind() notification.Channel { return c.kind }
func (c *captureChannel) Available() bool            { return true }

func (c *captureChannel) Send(_ context.Context, n notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureChannel) all() []notification.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notification.Notification, len(c.sent))
	copy(out, c.sent)
	return out
}

type fixture struct {
	svc *Service
	trk *tracker.Tracker
	pri *prioritizer.Service
	dlv *delivery.Manager
	ch  *captureChannel
	bus eventbus.Bus
}

func newFixture(t *testing.T, cfg Config, store storage.Store, rules []notification.ReminderRule) *fixture {
	t.Helper()
	prefs := notification.DefaultPreferences()
	prefs.QuietHoursEnabled = false
	prefs.MinimumPriority = notification.PriorityLow

	trk := tracker.New(tracker.Config{MaxItems: 100}, logx.Nop())
	pri := prioritizer.New(logx.Nop())
	dlv := delivery.New(delivery.Config{RatePerSecond: 100000, Burst: 100000}, prefs, logx.Nop())
	ch := &captureChannel{kind: notification.ChannelInApp}
	dlv.Register(ch)
	bus := eventbus.New()

	cfg.Enabled = true
	svc := New(cfg, Deps{
		Tracker:     trk,
		Prioritizer: pri,
		Delivery:    dlv,
		Bus:         bus,
		Store:       store,
		Rules:       rules,
	}, logx.Nop())

	return &fixture{svc: svc, trk: trk, pri: pri, dlv: dlv, ch: ch, bus: bus}
}

func TestTickFiresReminderOncePerCooldown(t *testing.T) {
	rule := notification.NewRule("hour before")
	rule.ItemTypes = []string{"task"}
	rule.Intervals = []notification.Interval{notification.Hour1}
	rule.PreferredChannels = []notification.Channel{notification.ChannelInApp}

	f := newFixture(t, Config{}, nil, []notification.ReminderRule{rule})

	it := tracker.NewItem("a", "Submit report", time.Now().Add(time.Hour))
	require.True(t, f.trk.Add(it))

	f.svc.tick(context.Background())

	sent := f.ch.all()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Title, "Submit report")
	assert.NotEmpty(t, sent[0].Actions)

	got, _ := f.trk.Get("a")
	assert.Equal(t, 1, got.RemindersSent)
	require.NotNil(t, got.LastReminderAt)

	// Same window again: cooldown suppresses a duplicate.
	f.svc.tick(context.Background())
	assert.Len(t, f.ch.all(), 1)

	stats := f.svc.Stats()
	assert.Equal(t, int64(2), stats.Ticks)
	assert.Equal(t, int64(1), stats.RemindersSent)
}

func TestTickOutsideWindowIsQuiet(t *testing.T) {
	rule := notification.NewRule("hour before")
	rule.Intervals = []notification.Interval{notification.Hour1}
	f := newFixture(t, Config{}, nil, []notification.ReminderRule{rule})

	// 3 hours out: no lead time is within its ±5 minute window.
	require.True(t, f.trk.Add(tracker.NewItem("a", "x", time.Now().Add(3*time.Hour))))
	f.svc.tick(context.Background())
	assert.Empty(t, f.ch.all())
}

func TestOverdueTransitionEscalatesImmediately(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)

	require.True(t, f.trk.Add(tracker.NewItem("late", "Pay invoice", time.Now().Add(time.Minute))))
	// Force the deadline into the past before the tick.
	f.trk.Mutate("late", func(m *tracker.Item) { m.Deadline = time.Now().Add(-10 * time.Minute) })

	events, unsub := f.bus.Subscribe(16)
	defer unsub()

	f.svc.tick(context.Background())

	sent := f.ch.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notification.TypeTaskOverdue, sent[0].Type)
	assert.Contains(t, sent[0].Title, "OVERDUE")
	assert.GreaterOrEqual(t, sent[0].Priority.Level(), notification.PriorityUrgent.Level())

	got, _ := f.trk.Get("late")
	assert.Equal(t, 1, got.OverdueRemindersSent)
	require.NotNil(t, got.LastOverdueNoticeAt)

	var sawOverdue bool
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.EventItemOverdue {
			sawOverdue = true
		}
	}
	assert.True(t, sawOverdue, "item.overdue event not published")

	// Next tick: still overdue, but inside the follow-up interval.
	f.svc.tick(context.Background())
	assert.Len(t, f.ch.all(), 1)
}

func TestOverdueFollowupAfterInterval(t *testing.T) {
	f := newFixture(t, Config{OverdueReminderInterval: time.Hour, MaxOverdueReminders: 2}, nil, nil)

	require.True(t, f.trk.Add(tracker.NewItem("late", "x", time.Now().Add(time.Minute))))
	f.trk.Mutate("late", func(m *tracker.Item) { m.Deadline = time.Now().Add(-10 * time.Minute) })

	f.svc.tick(context.Background())
	require.Len(t, f.ch.all(), 1)

	// Pretend the last notice was sent long ago.
	past := time.Now().Add(-2 * time.Hour)
	f.trk.Mutate("late", func(m *tracker.Item) { m.LastOverdueNoticeAt = &past })

	f.svc.tick(context.Background())
	assert.Len(t, f.ch.all(), 2)

	// Cap reached: no third notice regardless of elapsed time.
	f.trk.Mutate("late", func(m *tracker.Item) { m.LastOverdueNoticeAt = &past })
	f.svc.tick(context.Background())
	assert.Len(t, f.ch.all(), 2)
}

func TestRuleQuietHoursSuppressMediumButNotUrgent(t *testing.T) {
	allDay := 0
	allDayEnd := 23
	rule := notification.NewRule("quiet")
	rule.Intervals = []notification.Interval{notification.Hour1}
	rule.PreferredChannels = []notification.Channel{notification.ChannelInApp}
	rule.QuietHoursStart = &allDay
	rule.QuietHoursEnd = &allDayEnd

	f := newFixture(t, Config{}, nil, []notification.ReminderRule{rule})

	require.True(t, f.trk.Add(tracker.NewItem("med", "x", time.Now().Add(time.Hour))))

	urgent := tracker.NewItem("urg", "y", time.Now().Add(time.Hour))
	urgent.Priority = notification.PriorityUrgent
	require.True(t, f.trk.Add(urgent))

	f.svc.tick(context.Background())

	sent := f.ch.all()
	require.Len(t, sent, 1, "only the urgent item may bypass quiet hours")
	assert.Contains(t, sent[0].Message, "y")

	stats := f.svc.Stats()
	assert.Equal(t, int64(1), stats.Suppressed)
}

func TestMaxRemindersPerItemCap(t *testing.T) {
	rule := notification.NewRule("hour before")
	rule.Intervals = []notification.Interval{notification.Hour1}
	rule.MaxReminders = 10

	f := newFixture(t, Config{MaxRemindersPerItem: 1, ReminderCooldown: time.Nanosecond}, nil,
		[]notification.ReminderRule{rule})

	require.True(t, f.trk.Add(tracker.NewItem("a", "x", time.Now().Add(time.Hour))))

	f.svc.tick(context.Background())
	time.Sleep(time.Millisecond) // step past the nanosecond cooldown
	f.svc.tick(context.Background())

	assert.Len(t, f.ch.all(), 1, "per-item cap must hold even without cooldown")
}

func TestSnapshotSaveAndRestore(t *testing.T) {
	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state.json")}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()

	f := newFixture(t, Config{}, store, nil)
	require.True(t, f.trk.Add(tracker.NewItem("a", "x", time.Now().Add(time.Hour))))
	n := notification.New("x", "y", notification.TypeTaskReminder, notification.PriorityMedium)
	f.pri.RecordInteraction(n, "read", 30, time.Now())

	f.svc.saveNow(context.Background())

	g := newFixture(t, Config{}, store, nil)
	g.svc.mu.Lock()
	g.svc.restoreLocked(context.Background())
	g.svc.mu.Unlock()

	assert.Equal(t, 1, g.trk.Len())
	assert.Equal(t, 1, g.pri.Stats().TotalInteractions)
}

func TestStatsBreakdown(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	now := time.Now()
	require.True(t, f.trk.Add(tracker.NewItem("up", "x", now.Add(48*time.Hour))))

	done := tracker.NewItem("done", "x", now.Add(time.Hour))
	done.CompletionPct = 100
	require.True(t, f.trk.Add(done))

	stats := f.svc.Stats()
	assert.Equal(t, 2, stats.ItemsMonitored)
	assert.Equal(t, 1, stats.ByStatus[tracker.StatusUpcoming])
	assert.Equal(t, 1, stats.ByStatus[tracker.StatusCompleted])
	assert.Zero(t, stats.Overdue)
}

func TestHumanDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "now"},
		{45 * time.Minute, "45m"},
		{2 * time.Hour, "2h"},
		{150 * time.Minute, "2h 30m"},
		{26 * time.Hour, "1d 2h"},
		{48 * time.Hour, "2d"},
		{-45 * time.Minute, "45m"},
	}
	for _, tc := range cases {
		if got := humanDuration(tc.d); got != tc.want {
			t.Fatalf("humanDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

// slowChannel holds each send open for a while, standing in for a real
// transport with network latency.
type slowChannel struct {
	captureChannel
	delay   time.Duration
	entered chan struct{}
	once    sync.Once
}

func (c *slowChannel) Send(ctx context.Context, n notification.Notification) error {
	c.once.Do(func() { close(c.entered) })
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.captureChannel.Send(ctx, n)
}

func TestStartStopLifecycle(t *testing.T) {
	rule := notification.NewRule("hour before")
	rule.Intervals = []notification.Interval{notification.Hour1}
	rule.PreferredChannels = []notification.Channel{notification.ChannelInApp}
	f := newFixture(t, Config{CheckInterval: time.Hour}, nil, []notification.ReminderRule{rule})
	require.True(t, f.trk.Add(tracker.NewItem("a", "Submit report", time.Now().Add(time.Hour))))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		f.svc.Start(ctx)
		close(started)
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}

	// Start fires an immediate evaluation; the item is inside the one
	// hour window, so a reminder must arrive without waiting for cron.
	deadline := time.Now().Add(3 * time.Second)
	for len(f.ch.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no reminder delivered after Start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopped := make(chan struct{})
	go func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		f.svc.Stop(sctx)
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(6 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Len(t, f.ch.all(), 1)
	assert.Equal(t, int64(1), f.svc.Stats().RemindersSent)
}

func TestStopWaitsForInFlightDelivery(t *testing.T) {
	prefs := notification.DefaultPreferences()
	prefs.QuietHoursEnabled = false
	prefs.MinimumPriority = notification.PriorityLow

	trk := tracker.New(tracker.Config{MaxItems: 10}, logx.Nop())
	pri := prioritizer.New(logx.Nop())
	dlv := delivery.New(delivery.Config{RatePerSecond: 100000, Burst: 100000}, prefs, logx.Nop())
	slow := &slowChannel{delay: 300 * time.Millisecond, entered: make(chan struct{})}
	slow.kind = notification.ChannelInApp
	dlv.Register(slow)

	rule := notification.NewRule("hour before")
	rule.Intervals = []notification.Interval{notification.Hour1}
	rule.PreferredChannels = []notification.Channel{notification.ChannelInApp}

	svc := New(Config{Enabled: true, CheckInterval: time.Hour}, Deps{
		Tracker:     trk,
		Prioritizer: pri,
		Delivery:    dlv,
		Bus:         eventbus.New(),
		Rules:       []notification.ReminderRule{rule},
	}, logx.Nop())

	require.True(t, trk.Add(tracker.NewItem("a", "Submit report", time.Now().Add(time.Hour))))

	svc.Start(context.Background())
	select {
	case <-slow.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("delivery never started")
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	svc.Stop(sctx)

	// Stop must let the send finish, not abort it via cancellation.
	require.Len(t, slow.all(), 1)
	got, _ := trk.Get("a")
	assert.Equal(t, 1, got.RemindersSent)
}
