package delivery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindd/internal/metrics"
	"remindd/internal/notification"
	"remindd/pkg/logx"
)

// Config controls the delivery manager.
type Config struct {
	// SendTimeout bounds a single channel send.
	SendTimeout time.Duration
	// RatePerSecond and Burst feed the outbound rate limiter.
	RatePerSecond float64
	Burst         int
	// HistoryLimit and HistoryMaxAge bound the delivery history.
	HistoryLimit  int
	HistoryMaxAge time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 1000
	}
	if c.HistoryMaxAge <= 0 {
		c.HistoryMaxAge = 30 * 24 * time.Hour
	}
	return c
}

// Manager routes notifications to registered channels after the global
// preference filter, keeps a bounded delivery history, and tracks
// engagement statistics.
type Manager struct {
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	prefs    notification.Preferences
	channels map[notification.Channel]Channel
	history  []notification.Notification
	stats    notification.Stats
}

func New(cfg Config, prefs notification.Preferences, log logx.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:      cfg,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		prefs:    prefs,
		channels: make(map[notification.Channel]Channel),
		stats: notification.Stats{
			SentByChannel: make(map[notification.Channel]int),
			SentByType:    make(map[notification.Type]int),
		},
	}
}

// Register adds a channel adapter. Later registrations for the same kind
// replace earlier ones.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	m.channels[ch.Kind()] = ch
	m.mu.Unlock()
	m.log.Info("delivery channel registered", logx.String("channel", string(ch.Kind())))
}

// SetPreferences swaps the active preference filter, used by config reload.
func (m *Manager) SetPreferences(p notification.Preferences) {
	m.mu.Lock()
	m.prefs = p
	m.mu.Unlock()
}

// Preferences returns a copy of the active preferences.
func (m *Manager) Preferences() notification.Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs
}

// Send applies the preference filter and dispatches the notification to
// every requested channel. It returns true if at least one channel
// accepted the notification. Channel sends run without the manager lock.
func (m *Manager) Send(ctx context.Context, n notification.Notification) bool {
	now := time.Now()
	if n.Expired(now) {
		m.suppress(n, "expired")
		return false
	}
	if !n.DueNow(now) {
		m.suppress(n, "scheduled for later")
		return false
	}

	m.mu.Lock()
	allowed, reason := m.prefs.Allow(n, now)
	if !allowed {
		m.mu.Unlock()
		m.suppress(n, reason)
		return false
	}
	targets := m.resolveTargets(n)
	m.mu.Unlock()

	if len(targets) == 0 {
		m.fail(n, "no available channels")
		return false
	}

	if err := m.limiter.Wait(ctx); err != nil {
		m.fail(n, "rate limiter: "+err.Error())
		return false
	}

	sent := false
	for _, ch := range targets {
		start := time.Now()
		err := m.sendOne(ctx, ch, n)
		metrics.DeliveryDuration.WithLabelValues(string(ch.Kind())).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.NotificationsFailed.WithLabelValues(string(n.Type), "channel_error").Inc()
			m.log.Warn("channel send failed",
				logx.String("channel", string(ch.Kind())),
				logx.String("notification", n.ID),
				logx.Err(err))
			continue
		}
		sent = true
		metrics.NotificationsSent.WithLabelValues(string(n.Type), string(ch.Kind())).Inc()
		m.mu.Lock()
		m.stats.SentByChannel[ch.Kind()]++
		m.mu.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sent {
		n.Status = notification.StatusSent
		n.SentAt = &now
		m.stats.TotalSent++
		m.stats.TotalDelivered++
		m.stats.SentByType[n.Type]++
	} else {
		n.Status = notification.StatusFailed
		m.stats.TotalFailed++
	}
	m.appendHistoryLocked(n, now)
	return sent
}

func (m *Manager) sendOne(ctx context.Context, ch Channel, n notification.Notification) error {
	sctx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()
	return ch.Send(sctx, n)
}

// Suppress records a notification that was withheld before any channel was
// tried, keeping it in history for engagement learning.
func (m *Manager) Suppress(n notification.Notification, reason string) {
	m.suppress(n, reason)
}

func (m *Manager) suppress(n notification.Notification, reason string) {
	metrics.NotificationsSuppressed.WithLabelValues(string(n.Type), reason).Inc()
	m.log.Debug("notification suppressed",
		logx.String("notification", n.ID),
		logx.String("reason", reason))
	now := time.Now()
	n.Status = notification.StatusSuppressed
	m.mu.Lock()
	m.stats.TotalSuppressed++
	m.appendHistoryLocked(n, now)
	m.mu.Unlock()
}

func (m *Manager) fail(n notification.Notification, reason string) {
	metrics.NotificationsFailed.WithLabelValues(string(n.Type), "dispatch").Inc()
	m.log.Warn("notification not delivered",
		logx.String("notification", n.ID),
		logx.String("reason", reason))
	now := time.Now()
	n.Status = notification.StatusFailed
	m.mu.Lock()
	m.stats.TotalFailed++
	m.appendHistoryLocked(n, now)
	m.mu.Unlock()
}

func (m *Manager) resolveTargets(n notification.Notification) []Channel {
	var out []Channel
	for _, kind := range n.Channels {
		ch, ok := m.channels[kind]
		if !ok || !ch.Available() {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (m *Manager) appendHistoryLocked(n notification.Notification, now time.Time) {
	m.history = append(m.history, n)
	cutoff := now.Add(-m.cfg.HistoryMaxAge)
	trim := 0
	for trim < len(m.history) && m.history[trim].CreatedAt.Before(cutoff) {
		trim++
	}
	if over := len(m.history) - trim - m.cfg.HistoryLimit; over > 0 {
		trim += over
	}
	if trim > 0 {
		m.history = append([]notification.Notification(nil), m.history[trim:]...)
	}
}

// MarkRead transitions a sent notification to read and returns the updated
// copy for engagement tracking.
func (m *Manager) MarkRead(id string) (notification.Notification, bool) {
	return m.transition(id, notification.StatusRead)
}

// Dismiss transitions a notification to dismissed.
func (m *Manager) Dismiss(id string) (notification.Notification, bool) {
	return m.transition(id, notification.StatusDismissed)
}

func (m *Manager) transition(id string, to notification.Status) (notification.Notification, bool) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID != id {
			continue
		}
		n := &m.history[i]
		switch to {
		case notification.StatusRead:
			if n.Status != notification.StatusSent && n.Status != notification.StatusDelivered {
				return notification.Notification{}, false
			}
			n.Status = to
			n.ReadAt = &now
			m.stats.TotalRead++
		case notification.StatusDismissed:
			if n.Status == notification.StatusDismissed {
				return notification.Notification{}, false
			}
			n.Status = to
			n.DismissedAt = &now
			m.stats.TotalDismissed++
		}
		return *n, true
	}
	return notification.Notification{}, false
}

// Get returns the notification with the given id from history.
func (m *Manager) Get(id string) (notification.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == id {
			return m.history[i], true
		}
	}
	return notification.Notification{}, false
}

// History returns up to limit most recent notifications, newest last.
// limit <= 0 returns everything.
func (m *Manager) History(limit int) []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]notification.Notification, len(h))
	copy(out, h)
	return out
}

// TestChannels sends a probe notification through every registered channel
// and reports per-channel success.
func (m *Manager) TestChannels(ctx context.Context) map[notification.Channel]bool {
	m.mu.Lock()
	chans := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		chans = append(chans, ch)
	}
	m.mu.Unlock()

	probe := notification.New("Test notification", "Channel connectivity test",
		notification.TypeSystemAlert, notification.PriorityLow)
	results := make(map[notification.Channel]bool, len(chans))
	for _, ch := range chans {
		if !ch.Available() {
			results[ch.Kind()] = false
			continue
		}
		results[ch.Kind()] = m.sendOne(ctx, ch, probe) == nil
	}
	return results
}

// Stats returns a copy of the aggregate delivery statistics.
func (m *Manager) Stats() notification.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.stats
	out.SentByChannel = make(map[notification.Channel]int, len(m.stats.SentByChannel))
	for k, v := range m.stats.SentByChannel {
		out.SentByChannel[k] = v
	}
	out.SentByType = make(map[notification.Type]int, len(m.stats.SentByType))
	for k, v := range m.stats.SentByType {
		out.SentByType[k] = v
	}
	return out
}
