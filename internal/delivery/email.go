package delivery

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"remindd/internal/notification"
)

// EmailConfig holds the SMTP settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func (c EmailConfig) addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// EmailChannel delivers notifications over SMTP. A fresh connection is
// made per send; volume is low enough that pooling is not worth it here.
type EmailChannel struct {
	cfg EmailConfig
}

func NewEmailChannel(cfg EmailConfig) *EmailChannel { return &EmailChannel{cfg: cfg} }

func (e *EmailChannel) Kind() notification.Channel { return notification.ChannelEmail }

func (e *EmailChannel) Available() bool {
	return e.cfg.Host != "" && len(e.cfg.To) > 0 && e.cfg.From != ""
}

func (e *EmailChannel) Send(ctx context.Context, n notification.Notification) error {
	if !e.Available() {
		return fmt.Errorf("email channel not configured")
	}
	var auth smtp.Auth
	if e.cfg.Username != "" && e.cfg.Password != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	msg := e.compose(n)

	// net/smtp has no context support, so honor cancellation around the
	// blocking call and let the manager's timeout bound the worst case.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(e.cfg.addr(), auth, e.cfg.From, e.cfg.To, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *EmailChannel) compose(n notification.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(n.Priority)), n.Title)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(n.Message)
	b.WriteString("\r\n")
	return []byte(b.String())
}
