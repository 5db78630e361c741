package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/notification"
)

func writeConfig(t *testing.T, name, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return NewManager(path)
}

func TestParseJSON(t *testing.T) {
	m := writeConfig(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"monitor": {"check_interval": "30s", "max_items": 50},
		"delivery": {
			"rate_per_sec": 2,
			"channels": {
				"desktop": {"enabled": true},
				"in_app": {"enabled": true, "queue_size": 64}
			}
		}
	}`)

	cfg, err := m.Parse()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "30s", cfg.Monitor.CheckInterval)
	assert.Equal(t, 50, cfg.Monitor.MaxItems)
	assert.Equal(t, float64(2), cfg.Delivery.RatePerSec)
	assert.Equal(t, 64, cfg.Delivery.Channels.InApp.QueueSize)
	assert.True(t, cfg.MonitorEnabled())
	assert.Nil(t, cfg.Storage)
}

func TestParseYAML(t *testing.T) {
	m := writeConfig(t, "config.yaml", `
logging:
  level: info
  console: true
storage:
  driver: file
  path: ./state.json
monitor:
  enabled: false
  check_interval: 2m
delivery:
  channels:
    telegram:
      enabled: true
      token: "123:abc"
      chat_id: 42
preferences:
  quiet_hours_enabled: false
  minimum_priority: low
rules:
  - name: standups
    item_types: [meeting]
    intervals: [15_minutes]
    weekend_enabled: true
`)

	cfg, err := m.Parse()
	require.NoError(t, err)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.False(t, cfg.MonitorEnabled())
	assert.Equal(t, int64(42), cfg.Delivery.Channels.Telegram.ChatID)

	prefs := cfg.Preferences.ToPreferences()
	assert.False(t, prefs.QuietHoursEnabled)
	assert.Equal(t, notification.PriorityLow, prefs.MinimumPriority)
	// Omitted keys keep their stock values.
	assert.True(t, prefs.Enabled)
	assert.Equal(t, 22, prefs.QuietHoursStart)

	rules, err := cfg.ParsedRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "standups", rules[0].Name)
	assert.Equal(t, []int{15}, rules[0].LeadTimes())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := writeConfig(t, "config.json", `{"logging": {"level": "info"}, "montior": {}}`)
	_, err := m.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "montior")
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := writeConfig(t, "config.json", `{"logging": {"level": "info"}}{"extra": true}`)
	_, err := m.Parse()
	require.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	m := writeConfig(t, "config.json", `{"monitor": {"check_interval": "5 minutes"}}`)
	_, err := m.Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor.check_interval")
}

func TestValidateChannelRequirements(t *testing.T) {
	var cfg Config
	cfg.Delivery.Channels.Telegram.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")

	cfg = Config{}
	cfg.Delivery.Channels.Webhook.Enabled = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook")

	cfg.Delivery.Channels.Webhook.URL = "https://hooks.example.com/x"
	assert.NoError(t, cfg.Validate())
}

func TestRuleConfigToRule(t *testing.T) {
	enabled := false
	rc := RuleConfig{
		Name:              "critical only",
		Priorities:        []string{"urgent", "critical"},
		Intervals:         []string{"1_hour", "1_day"},
		PreferredChannels: []string{"desktop"},
		TitleTemplate:     "Heads up: {title}",
		Enabled:           &enabled,
		MaxReminders:      7,
	}
	rule, err := rc.ToRule()
	require.NoError(t, err)
	assert.Equal(t, []int{60, 1440}, rule.LeadTimes())
	assert.Equal(t, []notification.Channel{notification.ChannelDesktop}, rule.PreferredChannels)
	assert.Equal(t, "Heads up: {title}", rule.TitleTemplate)
	assert.False(t, rule.Enabled)
	assert.Equal(t, 7, rule.MaxReminders)
	// weekend_enabled was omitted, so the rule keeps its default.
	assert.True(t, rule.WeekendEnabled)

	weekdaysOnly := false
	rule, err = RuleConfig{Name: "weekdays", WeekendEnabled: &weekdaysOnly}.ToRule()
	require.NoError(t, err)
	assert.False(t, rule.WeekendEnabled)

	_, err = RuleConfig{Name: "bad", Intervals: []string{"fortnight"}}.ToRule()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fortnight")
}

func TestParsedRulesEmptyMeansBuiltins(t *testing.T) {
	var cfg Config
	rules, err := cfg.ParsedRules()
	require.NoError(t, err)
	assert.Equal(t, len(notification.DefaultRules()), len(rules))
}

func TestLoadCommitsAndGetReturnsSame(t *testing.T) {
	m := writeConfig(t, "config.json", `{"logging": {"level": "warn"}}`)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())
}

func TestSubscribePublishDropsStale(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a, b := &Config{}, &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(a)
	m.publish(b) // buffer full: a is dropped, b pushed

	got := <-ch
	assert.Same(t, b, got)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second config %+v", extra)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	// Publishing after unsubscribe must not panic.
	m.publish(&Config{})
}

func TestWatchReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("fsnotify watch test")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher a moment to attach before the write.
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-ctx.Done():
		t.Fatal("no reload observed before timeout")
	}
}

func TestWatchIgnoresUnchangedContent(t *testing.T) {
	if testing.Short() {
		t.Skip("fsnotify watch test")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("logging:\n  level: info\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, body, 0o644)) // identical bytes

	select {
	case <-ch:
		t.Fatal("unchanged content must not be republished")
	case <-time.After(time.Second):
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseDurationField("x", "90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDurationField("x", "ninety")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")

	d, err = ParseDurationOrDefault("x", "", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}
