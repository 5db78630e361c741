package app

import (
	"fmt"
	"time"

	"remindd/internal/config"
	"remindd/internal/delivery"
	"remindd/internal/monitor"
	"remindd/internal/storage"
	"remindd/internal/tracker"
	"remindd/pkg/logx"
)

// Config-to-component mapping. Durations were validated at parse time, so
// errors here indicate a programming mistake, not user input.

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func trackerConfig(cfg *config.Config) (tracker.Config, error) {
	approaching, err := config.ParseDurationOrDefault("monitor.approaching_window", cfg.Monitor.ApproachingWindow, 24*time.Hour)
	if err != nil {
		return tracker.Config{}, err
	}
	imminent, err := config.ParseDurationOrDefault("monitor.imminent_window", cfg.Monitor.ImminentWindow, time.Hour)
	if err != nil {
		return tracker.Config{}, err
	}
	completedAfter, err := config.ParseDurationOrDefault("monitor.cleanup_completed_after", cfg.Monitor.CleanupCompletedAfter, 7*24*time.Hour)
	if err != nil {
		return tracker.Config{}, err
	}
	cancelledAfter, err := config.ParseDurationOrDefault("monitor.cleanup_cancelled_after", cfg.Monitor.CleanupCancelledAfter, 24*time.Hour)
	if err != nil {
		return tracker.Config{}, err
	}
	return tracker.Config{
		MaxItems: cfg.Monitor.MaxItems,
		Thresholds: tracker.Thresholds{
			Approaching: approaching,
			Imminent:    imminent,
		},
		CleanupCompletedAfter: completedAfter,
		CleanupCancelledAfter: cancelledAfter,
	}, nil
}

func monitorConfig(cfg *config.Config) (monitor.Config, error) {
	check, err := config.ParseDurationOrDefault("monitor.check_interval", cfg.Monitor.CheckInterval, time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("monitor.reminder_cooldown", cfg.Monitor.ReminderCooldown, 5*time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	overdueEvery, err := config.ParseDurationOrDefault("monitor.overdue_reminder_interval", cfg.Monitor.OverdueReminderInterval, 24*time.Hour)
	if err != nil {
		return monitor.Config{}, err
	}
	saveEvery, err := config.ParseDurationOrDefault("monitor.save_interval", cfg.Monitor.SaveInterval, 15*time.Minute)
	if err != nil {
		return monitor.Config{}, err
	}
	approaching, err := config.ParseDurationOrDefault("monitor.approaching_window", cfg.Monitor.ApproachingWindow, 24*time.Hour)
	if err != nil {
		return monitor.Config{}, err
	}
	imminent, err := config.ParseDurationOrDefault("monitor.imminent_window", cfg.Monitor.ImminentWindow, time.Hour)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Enabled:       cfg.MonitorEnabled(),
		CheckInterval: check,
		Thresholds: tracker.Thresholds{
			Approaching: approaching,
			Imminent:    imminent,
		},
		MaxRemindersPerItem:     cfg.Monitor.MaxRemindersPerItem,
		ReminderCooldown:        cooldown,
		OverdueReminderInterval: overdueEvery,
		MaxOverdueReminders:     cfg.Monitor.MaxOverdueReminders,
		SaveInterval:            saveEvery,
	}, nil
}

func deliveryConfig(cfg *config.Config) (delivery.Config, error) {
	sendTimeout, err := config.ParseDurationOrDefault("delivery.send_timeout", cfg.Delivery.SendTimeout, 10*time.Second)
	if err != nil {
		return delivery.Config{}, err
	}
	maxAge, err := config.ParseDurationOrDefault("delivery.history_max_age", cfg.Delivery.HistoryMaxAge, 30*24*time.Hour)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{
		SendTimeout:   sendTimeout,
		RatePerSecond: cfg.Delivery.RatePerSec,
		Burst:         cfg.Delivery.Burst,
		HistoryLimit:  cfg.Delivery.HistoryLimit,
		HistoryMaxAge: maxAge,
	}, nil
}

// registerChannels builds and registers the enabled channel adapters.
// The in-app channel is returned so the CLI surface can drain it.
// A telegram adapter that fails its API handshake is skipped with a
// warning rather than aborting startup.
func registerChannels(dlv *delivery.Manager, ch config.ChannelsConfig, log logx.Logger) *delivery.InAppChannel {
	var inApp *delivery.InAppChannel
	if ch.InApp.Enabled {
		inApp = delivery.NewInAppChannel(ch.InApp.QueueSize)
		dlv.Register(inApp)
	}
	if ch.Desktop.Enabled {
		dlv.Register(delivery.NewDesktopChannel())
	}
	if ch.Email.Enabled {
		dlv.Register(delivery.NewEmailChannel(delivery.EmailConfig{
			Host:     ch.Email.Host,
			Port:     ch.Email.Port,
			Username: ch.Email.Username,
			Password: ch.Email.Password,
			From:     ch.Email.From,
			To:       ch.Email.To,
		}))
	}
	if ch.Webhook.Enabled {
		timeout, _ := config.ParseDurationField("delivery.channels.webhook.timeout", ch.Webhook.Timeout)
		dlv.Register(delivery.NewWebhookChannel(delivery.WebhookConfig{
			URL:     ch.Webhook.URL,
			Headers: ch.Webhook.Headers,
			Timeout: timeout,
		}))
	}
	if ch.Telegram.Enabled {
		tg, err := delivery.NewTelegramChannel(delivery.TelegramConfig{
			Token:  ch.Telegram.Token,
			ChatID: ch.Telegram.ChatID,
		})
		if err != nil {
			log.Warn("telegram channel unavailable", logx.Err(err))
		} else {
			dlv.Register(tg)
		}
	}
	return inApp
}
