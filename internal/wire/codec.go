// Package wire encodes payloads into frames that can be stored in Redis
// streams and published over MQTT.
//
// Usage:
//
//	codec, err := wire.Lookup("msgpack")
//	frame, err := codec.Encode(payload.FromString("hello").WithAckID(1))
//	p, err := codec.Decode(frame)
package wire

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ibs-source/payload-relay/internal/payload"
)

var (
	// ErrUnknownCodec is returned by Lookup for names that were never registered
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrMalformedFrame wraps every decoding failure
	ErrMalformedFrame = errors.New("malformed frame")
)

// Codec converts payloads to and from frames.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes the payload, including its ack ID when set.
	Encode(p payload.Payload) ([]byte, error)

	// Decode rebuilds a payload from a frame produced by Encode.
	Decode(frame []byte) (payload.Payload, error)

	// Name is the registry key (e.g. "json").
	Name() string

	// ContentType returns the MIME type (e.g. "application/json").
	ContentType() string
}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{
		"json": JSON{},
	}
)

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}

// Register adds a codec to the registry, replacing any codec with the same name.
func Register(codec Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[codec.Name()] = codec
}

// Get retrieves a codec by name.
func Get(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Lookup retrieves a codec by name or returns ErrUnknownCodec.
func Lookup(name string) (Codec, error) {
	if c, ok := Get(name); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// Names lists registered codec names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...))
}
