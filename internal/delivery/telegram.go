package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindd/internal/notification"
)

// TelegramConfig holds the bot token and target chat for the telegram channel.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramChannel pushes notifications to a telegram chat through the Bot
// API. The bot is send-only, so no poller is attached.
type TelegramChannel struct {
	cfg TelegramConfig
	bot *tele.Bot
}

func NewTelegramChannel(cfg TelegramConfig) (*TelegramChannel, error) {
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramChannel{cfg: cfg, bot: bot}, nil
}

func (t *TelegramChannel) Kind() notification.Channel { return notification.ChannelTelegram }

func (t *TelegramChannel) Available() bool { return t.bot != nil && t.cfg.ChatID != 0 }

func (t *TelegramChannel) Send(_ context.Context, n notification.Notification) error {
	chat := &tele.Chat{ID: t.cfg.ChatID}
	_, err := t.bot.Send(chat, t.format(n), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *TelegramChannel) format(n notification.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", escapeHTML(n.Title))
	b.WriteString(escapeHTML(n.Message))
	if n.ScheduledTime != nil {
		fmt.Fprintf(&b, "\n\n<i>due %s</i>", n.ScheduledTime.Format(time.RFC822))
	}
	return b.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
