package delivery

import (
	"context"
	"sync"

	"remindd/internal/notification"
)

const defaultInAppQueue = 256

// InAppChannel keeps notifications in a bounded in-process queue for a UI
// layer to drain. An optional handler is invoked synchronously on every
// send so embedders can push straight into their own event loop.
type InAppChannel struct {
	mu      sync.Mutex
	queue   []notification.Notification
	limit   int
	handler func(notification.Notification)
}

func NewInAppChannel(limit int) *InAppChannel {
	if limit <= 0 {
		limit = defaultInAppQueue
	}
	return &InAppChannel{limit: limit}
}

// SetHandler installs a callback invoked for every delivered notification.
func (c *InAppChannel) SetHandler(fn func(notification.Notification)) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

func (c *InAppChannel) Kind() notification.Channel { return notification.ChannelInApp }

func (c *InAppChannel) Available() bool { return true }

func (c *InAppChannel) Send(_ context.Context, n notification.Notification) error {
	c.mu.Lock()
	c.queue = append(c.queue, n)
	if len(c.queue) > c.limit {
		c.queue = c.queue[len(c.queue)-c.limit:]
	}
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(n)
	}
	return nil
}

// Drain returns all queued notifications and empties the queue.
func (c *InAppChannel) Drain() []notification.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

// Pending reports the number of queued notifications.
func (c *InAppChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
