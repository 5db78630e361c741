package delivery

import (
	"context"
	"fmt"
	"os/exec"

	"remindd/internal/notification"
)

// DesktopChannel shows notifications through the freedesktop notify-send
// utility. It is only available on hosts that have the binary on PATH.
type DesktopChannel struct{}

func NewDesktopChannel() *DesktopChannel { return &DesktopChannel{} }

func (d *DesktopChannel) Kind() notification.Channel { return notification.ChannelDesktop }

func (d *DesktopChannel) Available() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}

func (d *DesktopChannel) Send(ctx context.Context, n notification.Notification) error {
	urgency := "normal"
	switch n.Priority {
	case notification.PriorityLow:
		urgency = "low"
	case notification.PriorityHigh, notification.PriorityUrgent, notification.PriorityCritical:
		urgency = "critical"
	}
	cmd := exec.CommandContext(ctx, "notify-send", "--urgency", urgency, "--app-name", "remindd", n.Title, n.Message)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, out)
	}
	return nil
}
