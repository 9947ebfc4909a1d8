// Package hotpath moves payload frames from Redis streams to MQTT and
// settles stream entries when their acknowledgments come back.
package hotpath

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibs-source/payload-relay/internal/config"
	"github.com/ibs-source/payload-relay/internal/log"
	"github.com/ibs-source/payload-relay/internal/message"
	"github.com/ibs-source/payload-relay/internal/mqtt"
	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/ibs-source/payload-relay/internal/pending"
	"github.com/ibs-source/payload-relay/internal/wire"
)

// ErrFrameTooLarge is returned when an encoded frame exceeds the configured limit
var ErrFrameTooLarge = errors.New("frame too large")

// Store is the stream side of the pipeline, implemented by *redis.Client
type Store interface {
	ReadBatch(ctx context.Context) (message.Batch[message.Frame], error)
	ClaimIdle(ctx context.Context) (message.Batch[message.Frame], error)
	CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration) (int, error)
	RefreshStreams(ctx context.Context) (int, error)
	AckAndDelete(ctx context.Context, entry message.Entry[message.Frame]) error
}

// HotPath orchestrates the Redis→MQTT pipeline
type HotPath struct {
	store               Store
	mqtt                mqtt.Publisher
	tracker             *pending.Tracker
	codec               wire.Codec
	msgChan             chan message.Entry[message.Frame]
	claimTicker         *time.Ticker
	cleanupTicker       *time.Ticker
	refreshTicker       *time.Ticker
	consumerIdleTimeout time.Duration
	errorBackoff        time.Duration
	ackTimeout          time.Duration
	maxFrameBytes       int
	publishWorkers      int
	log                 *log.Logger
}

// New creates a hot path. publisher can be either *mqtt.Client or *mqtt.Pool.
func New(
	store Store,
	publisher mqtt.Publisher,
	tracker *pending.Tracker,
	codec wire.Codec,
	cfg *config.Config,
	logger *log.Logger,
) *HotPath {
	return &HotPath{
		store:               store,
		mqtt:                publisher,
		tracker:             tracker,
		codec:               codec,
		msgChan:             make(chan message.Entry[message.Frame], cfg.Pipeline.BufferCapacity),
		claimTicker:         time.NewTicker(cfg.Redis.ClaimIdle),
		cleanupTicker:       time.NewTicker(cfg.Redis.CleanupInterval),
		refreshTicker:       time.NewTicker(cfg.Redis.CleanupInterval), // streams are refreshed as often as consumers are cleaned
		consumerIdleTimeout: cfg.Redis.ConsumerIdleTimeout,
		errorBackoff:        cfg.Pipeline.ErrorBackoff,
		ackTimeout:          cfg.Pipeline.AckTimeout,
		maxFrameBytes:       cfg.Payload.MaxFrameBytes,
		publishWorkers:      cfg.Pipeline.PublishWorkers,
		log:                 logger,
	}
}

// startLoop starts a loop goroutine and reports non-canceled errors
func (hp *HotPath) startLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	name string,
	loop func(context.Context) error,
	errCh chan<- error,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("%s loop error: %w", name, err)
		}
	}()
}

// Run subscribes to acks and runs every loop until ctx is done or a loop fails
func (hp *HotPath) Run(ctx context.Context) error {
	hp.log.Info("Starting hot path orchestrator (codec %s)", hp.codec.Name())

	if err := hp.mqtt.SubscribeAck(hp.handleAck); err != nil {
		return fmt.Errorf("failed to subscribe to ack topic: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4+hp.publishWorkers)

	hp.startLoop(runCtx, &wg, "fetch", hp.fetchLoop, errCh)
	hp.startLoop(runCtx, &wg, "claim", hp.claimLoop, errCh)
	hp.startLoop(runCtx, &wg, "cleanup", hp.cleanupLoop, errCh)
	hp.startLoop(runCtx, &wg, "refresh", hp.refreshLoop, errCh)

	hp.log.Info("Starting %d publish workers", hp.publishWorkers)
	for i := 0; i < hp.publishWorkers; i++ {
		hp.startLoop(runCtx, &wg, fmt.Sprintf("publish-%d", i), hp.publishLoop, errCh)
	}

	var err error
	select {
	case <-ctx.Done():
		hp.log.Info("Shutting down hot path orchestrator")
		err = ctx.Err()
	case err = <-errCh:
		hp.log.Error("Hot path error: %v", err)
	}

	cancel()
	wg.Wait()
	hp.stopTickers()
	return err
}

// fetchLoop continuously reads new entries and queues them for publishing
func (hp *HotPath) fetchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := hp.store.ReadBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			hp.log.Error("Failed to read batch from Redis: %v", err)
			if err := sleep(ctx, hp.errorBackoff); err != nil {
				return err
			}
			continue
		}

		if batch.Len() == 0 {
			continue
		}

		hp.log.Debug("Fetched %d entries from Redis", batch.Len())
		if err := hp.enqueue(ctx, batch); err != nil {
			return err
		}
	}
}

func (hp *HotPath) enqueue(ctx context.Context, batch message.Batch[message.Frame]) error {
	for i := range batch.Items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case hp.msgChan <- batch.Items[i]:
		}
	}
	return nil
}

// publishLoop takes entries off the queue and publishes them
func (hp *HotPath) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-hp.msgChan:
			if err := hp.publish(ctx, entry); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// The entry stays pending; the claim loop retries it
				hp.log.Error("Failed to publish entry %s: %v", entry.ID, err)
			}
		}
	}
}

// publish tags the entry's payload with a fresh ack ID and sends it.
// Entries that can never be published are dropped from the stream.
func (hp *HotPath) publish(ctx context.Context, entry message.Entry[message.Frame]) error {
	p, err := hp.codec.Decode(entry.Body)
	if err != nil {
		hp.drop(entry, err)
		return nil
	}

	if p.Kind() == payload.KindString { //nolint:staticcheck // legacy producers still write it
		hp.log.WithPayload(p).Warnf("Entry %s carries a deprecated string payload", entry.ID)
	}

	id, err := hp.tracker.Track(entry)
	if err != nil {
		return err
	}

	frame, err := hp.codec.Encode(p.WithAckID(id))
	if err != nil {
		hp.tracker.Forget(id)
		hp.drop(entry, err)
		return nil
	}

	if hp.maxFrameBytes > 0 && len(frame) > hp.maxFrameBytes {
		hp.tracker.Forget(id)
		hp.drop(entry, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(frame), hp.maxFrameBytes))
		return nil
	}

	if err := hp.mqtt.Publish(ctx, frame); err != nil {
		hp.tracker.Forget(id)
		return err
	}

	hp.log.WithPayload(p.WithAckID(id)).Debugf("Published entry %s from stream %s", entry.ID, entry.Stream)
	return nil
}

// drop removes an entry whose frame can never be published
func (hp *HotPath) drop(entry message.Entry[message.Frame], reason error) {
	hp.log.Error("Dropping entry %s from stream %s: %v", entry.ID, entry.Stream, reason)

	ctx, cancel := context.WithTimeout(context.Background(), hp.ackTimeout)
	defer cancel()
	if err := hp.store.AckAndDelete(ctx, entry.Ref()); err != nil {
		hp.log.Error("Failed to drop entry %s: %v", entry.ID, err)
	}
}

// claimLoop periodically claims idle entries and queues them again
func (hp *HotPath) claimLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hp.claimTicker.C:
			batch, err := hp.store.ClaimIdle(ctx)
			if err != nil {
				hp.log.Error("Failed to claim idle entries: %v", err)
				continue
			}

			if batch.Len() > 0 {
				hp.log.Info("Claimed %d idle entries (%d acks pending)", batch.Len(), hp.tracker.Len())
				if err := hp.enqueue(ctx, batch); err != nil {
					return err
				}
			}
		}
	}
}

// cleanupLoop periodically removes dead consumers from the consumer groups
func (hp *HotPath) cleanupLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hp.cleanupTicker.C:
			if _, err := hp.store.CleanupDeadConsumers(ctx, hp.consumerIdleTimeout); err != nil {
				hp.log.Error("Failed to cleanup dead consumers: %v", err)
			}
		}
	}
}

// refreshLoop periodically refreshes the list of streams (multi-stream mode only)
func (hp *HotPath) refreshLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hp.refreshTicker.C:
			newCount, err := hp.store.RefreshStreams(ctx)
			if err != nil {
				hp.log.Error("Failed to refresh streams: %v", err)
				continue
			}
			if newCount > 0 {
				hp.log.Info("Stream refresh discovered %d new streams", newCount)
			}
		}
	}
}

// handleAck settles the entry an ack refers to. A text ack whose first
// value is false is negative: the entry stays pending and is reclaimed.
func (hp *HotPath) handleAck(ack payload.Payload) {
	id, _ := ack.AckID()
	entry, err := hp.tracker.Resolve(id)
	if err != nil {
		hp.log.Debug("Ignoring ack: %v", err)
		return
	}

	if isNegative(ack) {
		hp.log.Info("Entry %s from stream %s failed processing, will be reclaimed", entry.ID, entry.Stream)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hp.ackTimeout)
	defer cancel()

	if err := hp.store.AckAndDelete(ctx, entry); err != nil {
		hp.log.Error("Failed to ack entry %s from stream %s in Redis: %v", entry.ID, entry.Stream, err)
		return
	}
	hp.log.Debug("Acked entry %s from stream %s", entry.ID, entry.Stream)
}

func isNegative(ack payload.Payload) bool {
	data := ack.Data()
	if data.Kind() != payload.KindText {
		return false
	}
	values := data.Values()
	if len(values) == 0 {
		return false
	}
	ok, isBool := values[0].(bool)
	return isBool && !ok
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (hp *HotPath) stopTickers() {
	hp.claimTicker.Stop()
	hp.cleanupTicker.Stop()
	hp.refreshTicker.Stop()
}

// Close stops the tickers
func (hp *HotPath) Close() error {
	hp.stopTickers()
	return nil
}
