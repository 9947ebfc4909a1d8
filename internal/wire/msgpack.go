package wire

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack frames a payload as a MessagePack map. It is more compact than
// JSON and carries binary content without base64.
//
// Numbers travel as MessagePack integers or floats and come back as
// json.Number, so integer and plain decimal values round-trip exactly.
type MsgPack struct{}

type packedFrame struct {
	Type   string `msgpack:"type"`
	ID     *int32 `msgpack:"id,omitempty"`
	Binary []byte `msgpack:"bin,omitempty"`
	Text   []any  `msgpack:"text,omitempty"`
	Str    string `msgpack:"str,omitempty"`
}

// Encode serializes the payload to MessagePack bytes.
func (MsgPack) Encode(p payload.Payload) ([]byte, error) {
	f := packedFrame{Type: p.Kind().String()}
	if id, ok := p.AckID(); ok {
		f.ID = &id
	}

	data := p.Data()
	switch data.Kind() {
	case payload.KindBinary:
		f.Binary = data.Bytes()
	case payload.KindString: //nolint:staticcheck // frames still carry the legacy kind
		f.Str = data.Raw()
	default:
		values := data.Values()
		f.Text = make([]any, len(values))
		for i, v := range values {
			f.Text[i] = toPacked(v)
		}
	}

	out, err := msgpack.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode msgpack frame: %w", err)
	}
	return out, nil
}

// Decode deserializes MessagePack bytes into a payload.
func (MsgPack) Decode(frame []byte) (payload.Payload, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(frame))
	dec.UseLooseInterfaceDecoding(true)

	var f packedFrame
	if err := dec.Decode(&f); err != nil {
		return payload.Payload{}, malformed("%v", err)
	}

	var p payload.Payload
	switch f.Type {
	case "text":
		values := make([]payload.Value, len(f.Text))
		for i, v := range f.Text {
			values[i] = fromPacked(v)
		}
		p = payload.FromValues(values)
	case "binary":
		p = payload.Binary(f.Binary)
	case "string":
		p = payload.LegacyString(f.Str) //nolint:staticcheck // frames still carry the legacy kind
	default:
		return payload.Payload{}, malformed("unknown type %q", f.Type)
	}

	if f.ID != nil {
		p.SetAckID(*f.ID)
	}
	return p, nil
}

// toPacked replaces json.Number with a native number so it is not sent as a string.
func toPacked(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toPacked(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = toPacked(e)
		}
		return out
	default:
		return v
	}
}

// fromPacked turns decoded numbers back into json.Number.
func fromPacked(v any) any {
	switch t := v.(type) {
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	case uint64:
		return json.Number(strconv.FormatUint(t, 10))
	case int8:
		return json.Number(strconv.FormatInt(int64(t), 10))
	case int16:
		return json.Number(strconv.FormatInt(int64(t), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(t), 10))
	case uint8:
		return json.Number(strconv.FormatUint(uint64(t), 10))
	case uint16:
		return json.Number(strconv.FormatUint(uint64(t), 10))
	case uint32:
		return json.Number(strconv.FormatUint(uint64(t), 10))
	case float32:
		return json.Number(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromPacked(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromPacked(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = fromPacked(e)
		}
		return out
	default:
		return v
	}
}

// Name returns the registry key.
func (MsgPack) Name() string {
	return "msgpack"
}

// ContentType returns the MIME type for MessagePack.
func (MsgPack) ContentType() string {
	return "application/msgpack"
}

// Compile-time check.
var _ Codec = MsgPack{}

func init() {
	Register(MsgPack{})
}
