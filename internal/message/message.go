// Package message provides the envelopes that carry encoded payload frames
// between Redis streams, the hot path and MQTT.
package message

// Frame is an encoded payload as produced by a wire codec
type Frame = []byte

// Entry is a strongly typed Redis stream entry
type Entry[T any] struct {
	ID     string
	Stream string // Stream name (required for multi-stream ACK/delete operations)
	Body   T
}

// Ref returns the entry without its body, enough to acknowledge it later
func (e Entry[T]) Ref() Entry[T] {
	return Entry[T]{ID: e.ID, Stream: e.Stream}
}

// Batch is an envelope returned by Redis fetchers
type Batch[T any] struct {
	Items []Entry[T]
}

// Len returns the number of entries in the batch
func (b Batch[T]) Len() int {
	return len(b.Items)
}
