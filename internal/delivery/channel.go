// Package delivery fans notifications out to configured channel adapters,
// applying the user's global preferences first and recording delivery and
// engagement statistics.
package delivery

import (
	"context"

	"remindd/internal/notification"
)

// Channel is the capability every concrete delivery adapter implements.
// Send may block on I/O; the manager always calls it with a bounded
// timeout context and without holding any lock.
type Channel interface {
	Kind() notification.Channel
	Send(ctx context.Context, n notification.Notification) error
	Available() bool
}
