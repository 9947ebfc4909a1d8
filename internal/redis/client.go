// Package redis stores payload frames in Redis streams and manages the
// consumer groups that read them back.
package redis

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ibs-source/payload-relay/internal/config"
	"github.com/ibs-source/payload-relay/internal/log"
	"github.com/ibs-source/payload-relay/internal/message"
	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/ibs-source/payload-relay/internal/wire"
	"github.com/ibs-source/payload-relay/pkg/jsonfast"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

// FrameField is the stream entry field holding an encoded payload
const FrameField = "frame"

// ErrNoStream is returned by Append when no stream is named and none is known
var ErrNoStream = errors.New("no stream to append to")

// Client manages Redis stream operations
type Client struct {
	rdb   *redis.Client
	codec wire.Codec

	// mu guards streams and groups. streams is replaced, never modified in place.
	mu              sync.RWMutex
	streams         []string
	groups          map[string]string
	multiStreamMode bool
	consumer        string
	batchSize       int64
	blockTimeout    time.Duration
	claimIdle       time.Duration
	log             *log.Logger
}

// NewClient connects to Redis and joins a consumer group on every stream.
// codec encodes entries that were written without a frame field.
func NewClient(cfg *config.RedisConfig, codec wire.Codec, logger *log.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// Maintenance notifications issue extra commands on every connection
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client := &Client{
		rdb:          rdb,
		codec:        codec,
		consumer:     cfg.Consumer,
		batchSize:    int64(cfg.BatchSize),
		blockTimeout: cfg.BlockTimeout,
		claimIdle:    cfg.ClaimIdle,
		groups:       make(map[string]string),
		log:          logger,
	}

	if cfg.Stream == "" {
		logger.Info("Multi-stream mode enabled: discovering Redis streams")
		streams, err := client.DiscoverStreams(ctx)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to discover streams: %w", err)
		}

		if len(streams) == 0 {
			logger.Warn("No streams found in Redis, will retry on next refresh")
		} else {
			logger.Info("Discovered %d streams: %v", len(streams), streams)
		}

		client.setStreams(streams)
		client.multiStreamMode = true
	} else {
		logger.Info("Single-stream mode: consuming from stream '%s'", cfg.Stream)
		client.setStreams([]string{cfg.Stream})
	}

	if err := client.ensureGroups(ctx, client.streamList()); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return client, nil
}

// DiscoverStreams lists every key of type stream
func (c *Client) DiscoverStreams(ctx context.Context) ([]string, error) {
	keys, err := c.rdb.Keys(ctx, "*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	streams := make([]string, 0)
	for _, key := range keys {
		keyType, err := c.rdb.Type(ctx, key).Result()
		if err != nil {
			c.log.Warn("failed to get type for key %s: %v", key, err)
			continue
		}
		if keyType == "stream" {
			streams = append(streams, key)
		}
	}
	sort.Strings(streams)

	return streams, nil
}

func (c *Client) ensureGroups(ctx context.Context, streams []string) error {
	c.addGroups(streams)

	for _, stream := range streams {
		groupName := groupOf(stream)
		err := c.rdb.XGroupCreateMkStream(ctx, stream, groupName, "0").Err()
		if err != nil {
			if err.Error() == "BUSYGROUP Consumer Group name already exists" {
				c.log.Debug("Consumer group '%s' already exists for stream '%s', joining it", groupName, stream)
				continue
			}
			return fmt.Errorf("failed to create consumer group for stream %s: %w", stream, err)
		}
		c.log.Info("Created consumer group '%s' for stream '%s'", groupName, stream)
	}
	return nil
}

// Append stores frame in stream and returns the new entry ID.
// An empty stream name selects the first consumed stream.
func (c *Client) Append(ctx context.Context, stream string, frame message.Frame) (string, error) {
	if stream == "" {
		var ok bool
		if stream, ok = c.defaultStream(); !ok {
			return "", ErrNoStream
		}
	}

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{FrameField: frame},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd failed for stream %s: %w", stream, err)
	}
	return id, nil
}

// ReadBatch fetches new entries for this consumer using XREADGROUP.
// With several streams each one is read without blocking, since every
// stream has its own group; the block timeout is waited out only when
// all of them were empty.
func (c *Client) ReadBatch(ctx context.Context) (message.Batch[message.Frame], error) {
	streams := c.streamList()
	switch len(streams) {
	case 0:
		return message.Batch[message.Frame]{}, nil
	case 1:
		items, err := c.readStream(ctx, streams[0], c.blockTimeout)
		return message.Batch[message.Frame]{Items: items}, err
	}

	var items []message.Entry[message.Frame]
	for _, stream := range streams {
		entries, err := c.readStream(ctx, stream, -1)
		if err != nil {
			return message.Batch[message.Frame]{Items: items}, err
		}
		items = append(items, entries...)
	}

	if len(items) == 0 && c.blockTimeout > 0 {
		timer := time.NewTimer(c.blockTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return message.Batch[message.Frame]{}, ctx.Err()
		case <-timer.C:
		}
	}

	return message.Batch[message.Frame]{Items: items}, nil
}

// readStream reads one stream; a negative block does not block at all
func (c *Client) readStream(ctx context.Context, stream string, block time.Duration) ([]message.Entry[message.Frame], error) {
	result, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupFor(stream),
		Consumer: c.consumer,
		Streams:  []string{stream, ">"},
		Count:    c.batchSize,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup failed for stream %s: %w", stream, err)
	}

	var items []message.Entry[message.Frame]
	for _, streamResult := range result {
		items = append(items, c.buildEntries(streamResult.Stream, streamResult.Messages)...)
	}
	return items, nil
}

// ClaimIdle takes over entries left pending by this or other consumers for
// longer than the claim idle time
func (c *Client) ClaimIdle(ctx context.Context) (message.Batch[message.Frame], error) {
	var items []message.Entry[message.Frame]

	for _, stream := range c.streamList() {
		pending, err := c.getPendingMessages(ctx, stream)
		if err != nil {
			c.log.Warn("failed to get pending messages for stream %s: %v", stream, err)
			continue
		}

		if len(pending) == 0 {
			continue
		}

		claimed, err := c.claimMessages(ctx, stream, pending)
		if err != nil {
			c.log.Warn("failed to claim messages for stream %s: %v", stream, err)
			continue
		}

		items = append(items, c.buildEntries(stream, claimed)...)
	}

	return message.Batch[message.Frame]{Items: items}, nil
}

func (c *Client) getPendingMessages(ctx context.Context, stream string) ([]redis.XPendingExt, error) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.groupFor(stream),
		Idle:   c.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xpending failed: %w", err)
	}

	return pending, nil
}

func (c *Client) claimMessages(
	ctx context.Context, stream string, pending []redis.XPendingExt,
) ([]redis.XMessage, error) {
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    c.groupFor(stream),
		Consumer: c.consumer,
		MinIdle:  c.claimIdle,
		Messages: ids,
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("xclaim failed: %w", err)
	}

	return claimed, nil
}

func (c *Client) buildEntries(stream string, msgs []redis.XMessage) []message.Entry[message.Frame] {
	entries := make([]message.Entry[message.Frame], 0, len(msgs))

	for _, msg := range msgs {
		frame, err := c.frameOf(msg.Values)
		if err != nil {
			c.log.Warn("Failed to build frame for entry %s in stream %s: %v", msg.ID, stream, err)
			continue
		}

		entries = append(entries, message.Entry[message.Frame]{
			ID:     msg.ID,
			Stream: stream,
			Body:   frame,
		})
	}

	return entries
}

// frameOf returns the frame stored in an entry. Entries written by other
// producers have no frame field; their fields become a JSON object that is
// carried as a text payload.
func (c *Client) frameOf(values map[string]interface{}) (message.Frame, error) {
	if v, ok := values[FrameField]; ok {
		if s, ok := v.(string); ok {
			return message.Frame(s), nil
		}
		return nil, fmt.Errorf("field %s holds %T", FrameField, v)
	}

	object := encodeFields(values)
	frame, err := c.codec.Encode(payload.FromString(string(object)))
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return frame, nil
}

// RefreshStreams rediscovers Redis streams (multi-stream mode only) and
// returns the number of new streams
func (c *Client) RefreshStreams(ctx context.Context) (int, error) {
	if !c.multiStreamMode {
		return 0, nil
	}

	discoveredStreams, err := c.DiscoverStreams(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to discover streams: %w", err)
	}

	current := c.streamList()
	existingStreams := make(map[string]bool, len(current))
	for _, stream := range current {
		existingStreams[stream] = true
	}

	var newStreams []string
	for _, stream := range discoveredStreams {
		if !existingStreams[stream] {
			newStreams = append(newStreams, stream)
		}
	}

	if len(newStreams) > 0 {
		c.log.Info("Discovered %d new streams: %v", len(newStreams), newStreams)
		if err := c.ensureGroups(ctx, newStreams); err != nil {
			return 0, fmt.Errorf("failed to create groups for new streams: %w", err)
		}
	}

	c.setStreams(discoveredStreams)

	if len(discoveredStreams) < len(existingStreams) {
		c.log.Info("Stream count decreased from %d to %d", len(existingStreams), len(discoveredStreams))
	}

	return len(newStreams), nil
}

// AckAndDelete acknowledges an entry and removes it from its stream
func (c *Client) AckAndDelete(ctx context.Context, entry message.Entry[message.Frame]) error {
	stream := entry.Stream
	if stream == "" {
		var ok bool
		if stream, ok = c.defaultStream(); !ok {
			return ErrNoStream
		}
	}
	group := c.groupFor(stream)

	if err := c.rdb.XAck(ctx, stream, group, entry.ID).Err(); err != nil {
		return fmt.Errorf("xack failed for entry %s in stream %s: %w", entry.ID, stream, err)
	}

	if err := c.rdb.XDel(ctx, stream, entry.ID).Err(); err != nil {
		return fmt.Errorf("xdel failed for entry %s in stream %s: %w", entry.ID, stream, err)
	}

	return nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func groupOf(stream string) string {
	return "group-" + stream
}

// encodeFields writes entry fields as a JSON object with sorted keys. An
// "object" field that holds JSON is embedded raw instead of as a string.
func encodeFields(values map[string]interface{}) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	builder := jsonfast.New(512)
	builder.BeginObject()

	for _, k := range keys {
		str, ok := values[k].(string)
		if !ok {
			continue
		}
		if k == "object" && isJSON(str) {
			builder.AddRawJSONField(k, []byte(str))
			continue
		}
		builder.AddStringField(k, str)
	}

	builder.EndObject()
	return builder.Copy()
}

// isJSON checks that s is a strictly valid JSON object or array
func isJSON(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return stdjson.Valid([]byte(s))
		default:
			return false
		}
	}
	return false
}

func (c *Client) streamList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streams
}

func (c *Client) setStreams(streams []string) {
	c.mu.Lock()
	c.streams = streams
	c.mu.Unlock()
}

func (c *Client) defaultStream() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.streams) == 0 {
		return "", false
	}
	return c.streams[0], true
}

// groupFor returns the group joined on stream, or the group name it would get
func (c *Client) groupFor(stream string) string {
	c.mu.RLock()
	group, ok := c.groups[stream]
	c.mu.RUnlock()
	if !ok {
		group = groupOf(stream)
	}
	return group
}

func (c *Client) addGroups(streams []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stream := range streams {
		c.groups[stream] = groupOf(stream)
	}
}
