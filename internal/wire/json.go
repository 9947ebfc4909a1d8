package wire

import (
	"bytes"
	"encoding/base64"
	stdjson "encoding/json"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/ibs-source/payload-relay/pkg/jsonfast"
)

// JSON frames a payload as a JSON object:
//
//	{"type":"text","id":12,"data":["event",{"k":"v"}]}
//	{"type":"binary","data":"AQID"}
//	{"type":"string","id":3,"data":"raw"}
//
// id is omitted when the payload has no ack ID.
type JSON struct{}

type jsonFrame struct {
	Type string          `json:"type"`
	ID   *int32          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Encode writes the frame with the jsonfast builder.
func (JSON) Encode(p payload.Payload) ([]byte, error) {
	data := p.Data()

	b := jsonfast.New(64 + data.Len()*2)
	b.AddStringField("type", p.Kind().String())
	if id, ok := p.AckID(); ok {
		b.AddIntField("id", int(id))
	}

	switch data.Kind() {
	case payload.KindBinary:
		b.AddBase64Field("data", data.Bytes())
	case payload.KindString: //nolint:staticcheck // frames still carry the legacy kind
		b.AddStringField("data", data.Raw())
	default:
		values := data.Values()
		if len(values) == 0 {
			b.AddRawJSONField("data", []byte("[]"))
			break
		}
		raw, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("failed to encode text payload: %w", err)
		}
		b.AddRawJSONField("data", raw)
	}

	b.EndObject()
	return b.Bytes(), nil
}

// Decode parses a frame, keeping numbers as json.Number.
func (JSON) Decode(frame []byte) (payload.Payload, error) {
	if !stdjson.Valid(frame) {
		return payload.Payload{}, malformed("invalid JSON")
	}
	var f jsonFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return payload.Payload{}, malformed("%v", err)
	}

	var p payload.Payload
	switch f.Type {
	case "text":
		values, err := decodeValues(f.Data)
		if err != nil {
			return payload.Payload{}, err
		}
		p = payload.FromValues(values)
	case "binary":
		var encoded string
		if err := json.Unmarshal(f.Data, &encoded); err != nil {
			return payload.Payload{}, malformed("binary data: %v", err)
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return payload.Payload{}, malformed("binary data: %v", err)
		}
		p = payload.Binary(raw)
	case "string":
		var s string
		if err := json.Unmarshal(f.Data, &s); err != nil {
			return payload.Payload{}, malformed("string data: %v", err)
		}
		p = payload.LegacyString(s) //nolint:staticcheck // frames still carry the legacy kind
	default:
		return payload.Payload{}, malformed("unknown type %q", f.Type)
	}

	if f.ID != nil {
		p.SetAckID(*f.ID)
	}
	return p, nil
}

func decodeValues(raw json.RawMessage) ([]payload.Value, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values []payload.Value
	if err := dec.Decode(&values); err != nil {
		return nil, malformed("text data: %v", err)
	}
	return values, nil
}

// Name returns the registry key.
func (JSON) Name() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (JSON) ContentType() string {
	return "application/json"
}

// Compile-time check.
var _ Codec = JSON{}
