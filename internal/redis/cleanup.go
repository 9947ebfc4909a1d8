package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// CleanupDeadConsumers removes consumers idle for longer than idleTimeout
// from every group this client belongs to and returns how many were removed.
// Their pending entries are released and picked up by ClaimIdle.
func (c *Client) CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration) (int, error) {
	removed := 0

	for _, stream := range c.streamList() {
		n, err := c.cleanupStream(ctx, stream, idleTimeout)
		if err != nil {
			c.log.Warn("failed to cleanup dead consumers for stream %s: %v", stream, err)
			continue
		}
		removed += n
	}

	if removed > 0 {
		c.log.Info("Cleaned up %d dead consumers", removed)
	}

	return removed, nil
}

func (c *Client) cleanupStream(ctx context.Context, stream string, idleTimeout time.Duration) (int, error) {
	group := c.groupFor(stream)
	consumers, err := c.rdb.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get consumers info: %w", err)
	}

	removed := 0
	for _, consumer := range consumers {
		if !isDead(consumer.Name, consumer.Idle, c.consumer, idleTimeout) {
			continue
		}

		fields := logrus.Fields{"stream": stream, "consumer": consumer.Name, "idle": consumer.Idle.String()}
		pending, err := c.rdb.XGroupDelConsumer(ctx, stream, group, consumer.Name).Result()
		if err != nil {
			c.log.ErrorWithFields(fields, "Failed to delete consumer: %v", err)
			continue
		}

		fields["pending"] = pending
		c.log.InfoWithFields(fields, "Deleted dead consumer")
		removed++
	}

	return removed, nil
}

// isDead reports whether a consumer other than self has been idle too long
func isDead(name string, idle time.Duration, self string, idleTimeout time.Duration) bool {
	return name != self && idle > idleTimeout
}
