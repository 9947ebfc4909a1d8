package mqtt

import (
	"errors"
	"fmt"

	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/ibs-source/payload-relay/internal/wire"
)

// ErrAckMissingID is returned for ack frames that decode but carry no ack ID
var ErrAckMissingID = errors.New("ack missing id")

// parseAck decodes an ack frame. The payload keeps whatever data the
// receiver sent along with the ID.
func parseAck(codec wire.Codec, frame []byte) (payload.Payload, error) {
	ack, err := codec.Decode(frame)
	if err != nil {
		return payload.Payload{}, fmt.Errorf("failed to parse ack: %w", err)
	}

	if _, ok := ack.AckID(); !ok {
		return payload.Payload{}, ErrAckMissingID
	}

	return ack, nil
}
