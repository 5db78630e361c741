// Package config loads and watches the remindd configuration file.
// Configs may be JSON or YAML; YAML is coerced to JSON so both formats
// share the same strict decoder.
package config

import (
	"fmt"
	"time"

	"remindd/internal/notification"
	"remindd/pkg/logx"
)

// Config is the root of the configuration file.
//
// All durations are Go duration strings (e.g. "500ms", "30s", "5m").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Storage enables the optional persistence layer. If omitted the
	// daemon runs purely in memory.
	Storage *StorageConfig `json:"storage,omitempty"`

	Monitor  MonitorConfig  `json:"monitor"`
	Delivery DeliveryConfig `json:"delivery"`

	// Preferences override the stock delivery preferences. Omitted
	// fields keep their defaults.
	Preferences *PreferencesConfig `json:"preferences,omitempty"`

	// Rules replace the built-in reminder rules when non-empty.
	Rules []RuleConfig `json:"rules,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ToLogx maps the section onto the logging service config.
func (l LoggingConfig) ToLogx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig(l.File),
	}
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./remindd_state.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MonitorConfig controls the deadline monitor loop.
//
// Defaults (when fields are omitted/zero):
//   - check_interval: "1m"
//   - approaching_window: "24h"
//   - imminent_window: "1h"
//   - max_items: 1000
//   - max_reminders_per_item: 10
//   - reminder_cooldown: "5m"
//   - overdue_reminder_interval: "24h"
//   - max_overdue_reminders: 5
//   - cleanup_completed_after: "168h"
//   - cleanup_cancelled_after: "24h"
//   - save_interval: "15m"
type MonitorConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	CheckInterval     string `json:"check_interval,omitempty"`
	ApproachingWindow string `json:"approaching_window,omitempty"`
	ImminentWindow    string `json:"imminent_window,omitempty"`

	MaxItems            int    `json:"max_items,omitempty"`
	MaxRemindersPerItem int    `json:"max_reminders_per_item,omitempty"`
	ReminderCooldown    string `json:"reminder_cooldown,omitempty"`

	OverdueReminderInterval string `json:"overdue_reminder_interval,omitempty"`
	MaxOverdueReminders     int    `json:"max_overdue_reminders,omitempty"`

	CleanupCompletedAfter string `json:"cleanup_completed_after,omitempty"`
	CleanupCancelledAfter string `json:"cleanup_cancelled_after,omitempty"`

	SaveInterval string `json:"save_interval,omitempty"`
}

// DeliveryConfig controls the delivery manager and its channel adapters.
type DeliveryConfig struct {
	SendTimeout   string  `json:"send_timeout,omitempty"` // default "10s"
	RatePerSec    float64 `json:"rate_per_sec,omitempty"` // default 1
	Burst         int     `json:"burst,omitempty"`        // default 5
	HistoryLimit  int     `json:"history_limit,omitempty"`
	HistoryMaxAge string  `json:"history_max_age,omitempty"` // default "720h"

	Channels ChannelsConfig `json:"channels"`
}

type ChannelsConfig struct {
	Desktop  DesktopChannelConfig  `json:"desktop"`
	InApp    InAppChannelConfig    `json:"in_app"`
	Email    EmailChannelConfig    `json:"email"`
	Webhook  WebhookChannelConfig  `json:"webhook"`
	Telegram TelegramChannelConfig `json:"telegram"`
}

type DesktopChannelConfig struct {
	Enabled bool `json:"enabled"`
}

type InAppChannelConfig struct {
	Enabled   bool `json:"enabled"`
	QueueSize int  `json:"queue_size,omitempty"`
}

type EmailChannelConfig struct {
	Enabled  bool     `json:"enabled"`
	Host     string   `json:"host,omitempty"`
	Port     int      `json:"port,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"` // do not log
	From     string   `json:"from,omitempty"`
	To       []string `json:"to,omitempty"`
}

type WebhookChannelConfig struct {
	Enabled bool              `json:"enabled"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

type TelegramChannelConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // do not log
	ChatID  int64  `json:"chat_id,omitempty"`
}

// PreferencesConfig mirrors notification.Preferences with pointer fields
// so omitted keys keep their defaults.
type PreferencesConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	QuietHoursEnabled *bool `json:"quiet_hours_enabled,omitempty"`
	QuietHoursStart   *int  `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     *int  `json:"quiet_hours_end,omitempty"`

	WeekendNotifications *bool `json:"weekend_notifications,omitempty"`

	MinimumPriority string `json:"minimum_priority,omitempty"`

	UrgentOverrideQuietHours   *bool `json:"urgent_override_quiet_hours,omitempty"`
	CriticalOverrideQuietHours *bool `json:"critical_override_quiet_hours,omitempty"`

	MaxRemindersPerItem int `json:"max_reminders_per_item,omitempty"`
	SnoozeMinutes       int `json:"snooze_minutes,omitempty"`
}

// ToPreferences layers the section over the stock defaults.
func (p *PreferencesConfig) ToPreferences() notification.Preferences {
	out := notification.DefaultPreferences()
	if p == nil {
		return out
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.QuietHoursEnabled != nil {
		out.QuietHoursEnabled = *p.QuietHoursEnabled
	}
	if p.QuietHoursStart != nil {
		out.QuietHoursStart = *p.QuietHoursStart
	}
	if p.QuietHoursEnd != nil {
		out.QuietHoursEnd = *p.QuietHoursEnd
	}
	if p.WeekendNotifications != nil {
		out.WeekendNotifications = *p.WeekendNotifications
	}
	if p.MinimumPriority != "" {
		out.MinimumPriority = notification.Priority(p.MinimumPriority)
	}
	if p.UrgentOverrideQuietHours != nil {
		out.UrgentOverrideQuietHours = *p.UrgentOverrideQuietHours
	}
	if p.CriticalOverrideQuietHours != nil {
		out.CriticalOverrideQuietHours = *p.CriticalOverrideQuietHours
	}
	if p.MaxRemindersPerItem > 0 {
		out.MaxRemindersPerItem = p.MaxRemindersPerItem
	}
	if p.SnoozeMinutes > 0 {
		out.SnoozeMinutes = p.SnoozeMinutes
	}
	return out
}

// RuleConfig describes one reminder rule in the config file.
type RuleConfig struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`

	ItemTypes  []string `json:"item_types,omitempty"`
	Priorities []string `json:"priorities,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	Intervals             []string `json:"intervals,omitempty"`
	CustomIntervalMinutes []int    `json:"custom_interval_minutes,omitempty"`

	PreferredChannels []string `json:"preferred_channels,omitempty"`

	QuietHoursStart *int  `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *int  `json:"quiet_hours_end,omitempty"`
	WeekendEnabled  *bool `json:"weekend_enabled,omitempty"`

	TitleTemplate   string `json:"title_template,omitempty"`
	MessageTemplate string `json:"message_template,omitempty"`

	Enabled      *bool `json:"enabled,omitempty"`
	MaxReminders int   `json:"max_reminders,omitempty"`
}

// ToRule converts the section into a reminder rule, validating enums.
func (r RuleConfig) ToRule() (notification.ReminderRule, error) {
	rule := notification.NewRule(r.Name)
	if r.ID != "" {
		rule.ID = r.ID
	}
	rule.ItemTypes = r.ItemTypes
	for _, p := range r.Priorities {
		rule.Priorities = append(rule.Priorities, notification.Priority(p))
	}
	rule.Tags = r.Tags
	if len(r.Intervals) > 0 {
		rule.Intervals = nil
		for _, iv := range r.Intervals {
			in := notification.Interval(iv)
			if in.Minutes() == 0 {
				return rule, fmt.Errorf("rule %q: unknown interval %q", r.Name, iv)
			}
			rule.Intervals = append(rule.Intervals, in)
		}
	}
	rule.CustomIntervalMinutes = r.CustomIntervalMinutes
	if len(r.PreferredChannels) > 0 {
		rule.PreferredChannels = nil
		for _, c := range r.PreferredChannels {
			rule.PreferredChannels = append(rule.PreferredChannels, notification.Channel(c))
		}
	}
	rule.QuietHoursStart = r.QuietHoursStart
	rule.QuietHoursEnd = r.QuietHoursEnd
	if r.WeekendEnabled != nil {
		rule.WeekendEnabled = *r.WeekendEnabled
	}
	if r.TitleTemplate != "" {
		rule.TitleTemplate = r.TitleTemplate
	}
	if r.MessageTemplate != "" {
		rule.MessageTemplate = r.MessageTemplate
	}
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	if r.MaxReminders > 0 {
		rule.MaxReminders = r.MaxReminders
	}
	return rule, nil
}

// Validate checks durations and enums without mutating the config.
func (c *Config) Validate() error {
	durs := []struct {
		path string
		raw  string
	}{
		{"monitor.check_interval", c.Monitor.CheckInterval},
		{"monitor.approaching_window", c.Monitor.ApproachingWindow},
		{"monitor.imminent_window", c.Monitor.ImminentWindow},
		{"monitor.reminder_cooldown", c.Monitor.ReminderCooldown},
		{"monitor.overdue_reminder_interval", c.Monitor.OverdueReminderInterval},
		{"monitor.cleanup_completed_after", c.Monitor.CleanupCompletedAfter},
		{"monitor.cleanup_cancelled_after", c.Monitor.CleanupCancelledAfter},
		{"monitor.save_interval", c.Monitor.SaveInterval},
		{"delivery.send_timeout", c.Delivery.SendTimeout},
		{"delivery.history_max_age", c.Delivery.HistoryMaxAge},
		{"delivery.channels.webhook.timeout", c.Delivery.Channels.Webhook.Timeout},
	}
	if c.Storage != nil {
		durs = append(durs, struct {
			path string
			raw  string
		}{"storage.busy_timeout", c.Storage.BusyTimeout})
	}
	for _, d := range durs {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if c.Delivery.Channels.Telegram.Enabled && c.Delivery.Channels.Telegram.Token == "" {
		return fmt.Errorf("delivery.channels.telegram: enabled but token is empty")
	}
	if c.Delivery.Channels.Webhook.Enabled && c.Delivery.Channels.Webhook.URL == "" {
		return fmt.Errorf("delivery.channels.webhook: enabled but url is empty")
	}
	for _, r := range c.Rules {
		if _, err := r.ToRule(); err != nil {
			return err
		}
	}
	return nil
}

// MonitorEnabled reports the effective enabled flag (default true).
func (c *Config) MonitorEnabled() bool {
	return c.Monitor.Enabled == nil || *c.Monitor.Enabled
}

// ParsedRules converts configured rules; empty config means built-ins.
func (c *Config) ParsedRules() ([]notification.ReminderRule, error) {
	if len(c.Rules) == 0 {
		return notification.DefaultRules(), nil
	}
	out := make([]notification.ReminderRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rule, err := r.ToRule()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// duration helpers used by the app wiring.

func (m MonitorConfig) CheckIntervalOr(def time.Duration) time.Duration {
	d, err := ParseDurationOrDefault("monitor.check_interval", m.CheckInterval, def)
	if err != nil {
		return def
	}
	return d
}
