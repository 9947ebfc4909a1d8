package mqtt

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ibs-source/payload-relay/internal/config"
	"github.com/ibs-source/payload-relay/internal/log"
	"github.com/ibs-source/payload-relay/internal/message"
	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/ibs-source/payload-relay/internal/wire"
)

// Pool spreads publishes over several connections in round-robin order
type Pool struct {
	clients []*Client
	next    atomic.Uint64
	size    int
	log     *log.Logger
}

// NewPool opens poolSize connections. Client IDs are
// <client-id>-<host>-<instance>-<n>, where instance is random per process.
func NewPool(cfg *config.MQTTConfig, poolSize int, codec wire.Codec, logger *log.Logger) (*Pool, error) {
	if poolSize < 1 {
		poolSize = 1
	}

	base := baseClientID(cfg.ClientID)
	clients := make([]*Client, poolSize)

	for i := 0; i < poolSize; i++ {
		clientCfg := *cfg
		clientCfg.ClientID = fmt.Sprintf("%s-%d", base, i)

		client, err := NewClient(&clientCfg, codec, logger)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = clients[j].Close()
			}
			return nil, fmt.Errorf("failed to create client %d: %w", i, err)
		}

		clients[i] = client
	}

	logger.Info("MQTT pool ready with %d connections (%s-*)", poolSize, base)

	return &Pool{
		clients: clients,
		size:    poolSize,
		log:     logger,
	}, nil
}

// baseClientID makes client IDs unique across hosts and across processes
// started from the same configuration
func baseClientID(clientID string) string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s-%s", clientID, hostname, uuid.NewString()[:8])
}

// Publish publishes a frame on the next connection
func (p *Pool) Publish(ctx context.Context, frame message.Frame) error {
	idx := p.next.Add(1) % uint64(p.size) // #nosec G115
	return p.clients[idx].Publish(ctx, frame)
}

// SubscribeAck subscribes to the ack topic on the first connection only,
// so each ack is delivered once
func (p *Pool) SubscribeAck(handler func(payload.Payload)) error {
	return p.clients[0].SubscribeAck(handler)
}

// Close closes all connections in the pool
func (p *Pool) Close() error {
	var lastErr error
	for i, client := range p.clients {
		if err := client.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close client %d: %w", i, err)
		}
	}
	return lastErr
}
