// Package pending remembers which stream entry every published ack ID
// belongs to until the acknowledgment arrives or the entry expires.
package pending

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"github.com/ibs-source/payload-relay/internal/log"
	"github.com/ibs-source/payload-relay/internal/message"
	"go.uber.org/atomic"
)

// ErrUnknownAck is returned by Resolve for IDs that were never tracked,
// already resolved, or expired.
var ErrUnknownAck = errors.New("unknown ack id")

// Entry identifies the stream entry waiting for an acknowledgment
type Entry = message.Entry[message.Frame]

// Tracker maps ack IDs to stream entries. Safe for concurrent use.
type Tracker struct {
	seq     *atomic.Int32
	entries *ttlcache.Cache
	log     *log.Logger
}

// NewTracker creates a tracker whose entries expire after ttl.
// Expired entries stay pending in Redis and are redelivered by the claim loop.
func NewTracker(ttl time.Duration, logger *log.Logger) (*Tracker, error) {
	entries := ttlcache.NewCache()
	entries.SkipTTLExtensionOnHit(true)
	if err := entries.SetTTL(ttl); err != nil {
		return nil, fmt.Errorf("failed to set pending ttl: %w", err)
	}

	t := &Tracker{
		seq:     atomic.NewInt32(-1),
		entries: entries,
		log:     logger,
	}
	entries.SetExpirationReasonCallback(t.onEvict)
	return t, nil
}

// Track allocates the next free ack ID for entry. IDs count up from 0 and
// wrap at math.MaxInt32, skipping IDs that are still pending.
func (t *Tracker) Track(entry Entry) (int32, error) {
	ref := entry.Ref()
	for {
		id := t.seq.Inc() & math.MaxInt32
		key := keyOf(id)
		if _, err := t.entries.Get(key); err == nil {
			continue
		}
		if err := t.entries.Set(key, ref); err != nil {
			return 0, fmt.Errorf("failed to track entry %s: %w", entry.ID, err)
		}
		return id, nil
	}
}

// Resolve returns the entry for id and stops tracking it. Each ID resolves
// at most once.
func (t *Tracker) Resolve(id int32) (Entry, error) {
	key := keyOf(id)
	v, err := t.entries.Get(key)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownAck, id)
	}
	if err := t.entries.Remove(key); err != nil {
		// Lost the race against another Resolve or the expiry
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownAck, id)
	}
	return v.(Entry), nil
}

// Forget drops id without resolving it, e.g. after a failed publish
func (t *Tracker) Forget(id int32) {
	_ = t.entries.Remove(keyOf(id))
}

// Len returns the number of entries waiting for an acknowledgment
func (t *Tracker) Len() int {
	return t.entries.Count()
}

// Close stops the expiry goroutine
func (t *Tracker) Close() error {
	if err := t.entries.Close(); err != nil && !errors.Is(err, ttlcache.ErrClosed) {
		return fmt.Errorf("failed to close pending tracker: %w", err)
	}
	return nil
}

func (t *Tracker) onEvict(key string, reason ttlcache.EvictionReason, value interface{}) {
	if reason != ttlcache.Expired {
		return
	}
	entry, _ := value.(Entry)
	t.log.Warn("Ack %s expired for entry %s in stream %s, leaving it for reclaim", key, entry.ID, entry.Stream)
}

func keyOf(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}
