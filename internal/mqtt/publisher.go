package mqtt

import (
	"context"

	"github.com/ibs-source/payload-relay/internal/message"
	"github.com/ibs-source/payload-relay/internal/payload"
)

// Publisher is implemented by both a single Client and a Pool
type Publisher interface {
	Publish(ctx context.Context, frame message.Frame) error
	SubscribeAck(handler func(payload.Payload)) error
	Close() error
}

var (
	_ Publisher = (*Client)(nil)
	_ Publisher = (*Pool)(nil)
)
