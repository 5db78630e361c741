package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/metrics"
	"remindd/internal/notification"
	"remindd/internal/tracker"
	"remindd/pkg/logx"
)

// tick is one evaluation pass: recompute statuses, escalate new overdues,
// evaluate reminder rules, clean up terminal items, snapshot if due.
func (s *Service) tick(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	cfg := s.cfg
	rules := s.rules
	s.stats.Ticks++
	s.stats.LastTick = &now
	s.mu.Unlock()

	newlyOverdue := s.trk.RecomputeAll(now)
	metrics.MonitoredItems.Set(float64(s.trk.Len()))

	for _, id := range newlyOverdue {
		it, ok := s.trk.Get(id)
		if !ok {
			continue
		}
		metrics.OverdueDetected.Inc()
		s.bus.Publish(eventbus.Event{Type: eventbus.EventItemOverdue, Data: it})
		s.sendOverdueNotice(ctx, it, now, cfg)
	}

	for _, it := range s.trk.All() {
		if ctx.Err() != nil {
			return
		}
		if it.Status.Terminal() {
			continue
		}
		if it.Status == tracker.StatusOverdue {
			s.maybeOverdueFollowup(ctx, it, now, cfg)
			continue
		}
		s.maybeRemind(ctx, it, now, cfg, rules)
	}

	if removed := s.trk.Cleanup(now); removed > 0 {
		s.mu.Lock()
		s.stats.ItemsCleaned += int64(removed)
		s.mu.Unlock()
	}

	s.maybeSave(now, cfg)
}

// maybeRemind fires at most one lead-time reminder for the item per tick.
func (s *Service) maybeRemind(ctx context.Context, it tracker.Item, now time.Time, cfg Config, rules []notification.ReminderRule) {
	if it.RemindersSent >= cfg.MaxRemindersPerItem {
		return
	}
	if it.LastReminderAt != nil && now.Sub(*it.LastReminderAt) < cfg.ReminderCooldown {
		return
	}

	for _, rule := range rules {
		if !rule.Matches(it.ItemType, it.Priority, it.Tags) {
			continue
		}
		if rule.MaxReminders > 0 && it.RemindersSent >= rule.MaxReminders {
			continue
		}
		// Largest lead-time wins when several windows match at once.
		leads := rule.LeadTimes()
		sort.Sort(sort.Reverse(sort.IntSlice(leads)))
		for _, lead := range leads {
			if lead <= 0 || !it.DueReminder(now, lead) {
				continue
			}
			n := s.buildReminder(it, rule, now)

			if rule.QuietAt(now) && !overridesQuiet(n.Priority) {
				s.noteSuppressed(n, "rule quiet hours")
				return
			}
			if !rule.WeekendEnabled && isWeekend(now) && !overridesQuiet(n.Priority) {
				s.noteSuppressed(n, "rule weekend disabled")
				return
			}
			if suppress, reason := s.pri.ShouldSuppress(n, now); suppress {
				s.noteSuppressed(n, reason)
				return
			}

			score := s.pri.Calculate(n, now)
			n.Priority = score.Adjusted
			n.Channels = mergeChannels(rule.PreferredChannels, s.pri.PreferredChannels(n, now))

			if s.dlv.Send(ctx, n) {
				s.trk.Mutate(it.ID, func(m *tracker.Item) {
					m.RemindersSent++
					m.LastReminderAt = &now
					m.RecordInteraction(now, "reminder_sent", map[string]string{
						"rule":         rule.Name,
						"lead_minutes": fmt.Sprintf("%d", lead),
					})
				})
				metrics.RemindersFired.Inc()
				s.mu.Lock()
				s.stats.RemindersSent++
				s.mu.Unlock()
				s.bus.Publish(eventbus.Event{Type: eventbus.EventNotificationSent, Data: n})
				s.log.Info("reminder sent",
					logx.String("item", it.ID),
					logx.String("rule", rule.Name),
					logx.Int("lead_minutes", lead),
					logx.String("priority", string(n.Priority)))
			} else {
				s.bus.Publish(eventbus.Event{Type: eventbus.EventNotificationFailed, Data: n})
			}
			return
		}
	}
}

// sendOverdueNotice is the immediate escalation when an item crosses its
// deadline. Quiet hours do not apply; overdue is always urgent or worse.
func (s *Service) sendOverdueNotice(ctx context.Context, it tracker.Item, now time.Time, cfg Config) {
	n := notification.New(
		fmt.Sprintf("OVERDUE: %s", it.Title),
		fmt.Sprintf("'%s' was due %s ago and needs attention", it.Title, humanDuration(now.Sub(it.Deadline))),
		notification.TypeTaskOverdue,
		escalate(it.Priority),
	)
	n.Channels = []notification.Channel{notification.ChannelDesktop, notification.ChannelInApp}
	n.Tags = it.Tags
	n.SourceTaskID = it.SourceTaskID
	n.SourceEventID = it.SourceEventID
	n.AddAction("view", "View", "callback", map[string]string{"item_id": it.ID}, true)
	n.AddAction("complete", "Mark complete", "callback", map[string]string{"item_id": it.ID}, false)
	n.AddAction("snooze", "Snooze", "snooze", map[string]string{"item_id": it.ID}, false)

	if s.dlv.Send(ctx, n) {
		s.trk.Mutate(it.ID, func(m *tracker.Item) {
			m.OverdueRemindersSent++
			m.LastOverdueNoticeAt = &now
			m.RecordInteraction(now, "overdue_notice", nil)
		})
		s.mu.Lock()
		s.stats.OverdueNotices++
		s.mu.Unlock()
		s.bus.Publish(eventbus.Event{Type: eventbus.EventNotificationSent, Data: n})
		s.log.Warn("item overdue",
			logx.String("item", it.ID),
			logx.String("title", it.Title),
			logx.Time("deadline", it.Deadline))
	}
}

// maybeOverdueFollowup re-notifies long-overdue items on a fixed cadence.
// Items restored from a snapshot that never got the initial notice get it
// here.
func (s *Service) maybeOverdueFollowup(ctx context.Context, it tracker.Item, now time.Time, cfg Config) {
	if it.LastOverdueNoticeAt == nil {
		s.sendOverdueNotice(ctx, it, now, cfg)
		return
	}
	if it.OverdueRemindersSent >= cfg.MaxOverdueReminders {
		return
	}
	if now.Sub(*it.LastOverdueNoticeAt) < cfg.OverdueReminderInterval {
		return
	}
	s.sendOverdueNotice(ctx, it, now, cfg)
}

func (s *Service) buildReminder(it tracker.Item, rule notification.ReminderRule, now time.Time) notification.Notification {
	until := it.Deadline.Sub(now)
	vars := map[string]string{
		"title":        it.Title,
		"description":  it.Description,
		"item_type":    it.ItemType,
		"priority":     string(it.Priority),
		"time_until":   humanDuration(until),
		"due_relative": "in " + humanDuration(until),
		"overdue_ago":  humanDuration(-until),
	}
	title, message := rule.Render(vars)

	n := notification.New(title, message, typeForItem(it), it.Priority)
	n.Tags = it.Tags
	n.SourceTaskID = it.SourceTaskID
	n.SourceEventID = it.SourceEventID
	// A lead-time reminder is pointless once the deadline passes; the
	// overdue path takes over from there.
	deadline := it.Deadline
	n.ExpiresAt = &deadline
	n.AddAction("view", "View", "callback", map[string]string{"item_id": it.ID}, true)
	n.AddAction("complete", "Mark complete", "callback", map[string]string{"item_id": it.ID}, false)
	n.AddAction("snooze", "Snooze", "snooze", map[string]string{"item_id": it.ID}, false)
	return n
}

func (s *Service) noteSuppressed(n notification.Notification, reason string) {
	s.dlv.Suppress(n, reason)
	s.mu.Lock()
	s.stats.Suppressed++
	s.mu.Unlock()
	s.bus.Publish(eventbus.Event{Type: eventbus.EventNotificationSuppressed, Data: n})
}

func typeForItem(it tracker.Item) notification.Type {
	switch it.ItemType {
	case "meeting", "event":
		return notification.TypeMeetingReminder
	case "deadline", "project":
		return notification.TypeDeadlineWarning
	default:
		return notification.TypeTaskReminder
	}
}

// escalate bumps the item priority one level for overdue notices, floor
// urgent.
func escalate(p notification.Priority) notification.Priority {
	level := p.Level() + 1
	if level < notification.PriorityUrgent.Level() {
		level = notification.PriorityUrgent.Level()
	}
	if level > notification.PriorityCritical.Level() {
		level = notification.PriorityCritical.Level()
	}
	return notification.PriorityFromLevel(level)
}

func overridesQuiet(p notification.Priority) bool {
	return p == notification.PriorityUrgent || p == notification.PriorityCritical
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// mergeChannels unions two preference-ordered channel lists, primary first.
func mergeChannels(primary, extra []notification.Channel) []notification.Channel {
	seen := make(map[notification.Channel]bool, len(primary)+len(extra))
	out := make([]notification.Channel, 0, len(primary)+len(extra))
	for _, c := range primary {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range extra {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// humanDuration renders a duration like "2d 3h", "45m", or "now".
func humanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return "now"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case days > 0:
		return fmt.Sprintf("%dd", days)
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
