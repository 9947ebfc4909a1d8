// Package payload defines the unit of data exchanged in one logical message:
// binary bytes or a sequence of structured values, plus an optional ack ID.
package payload

import (
	"bytes"
	"fmt"
	"reflect"
)

// Kind identifies the shape of a Payload
type Kind uint8

const (
	// KindText holds an ordered sequence of structured values
	KindText Kind = iota
	// KindBinary holds raw bytes
	KindBinary
	// KindString holds a single raw string.
	//
	// Deprecated: use KindText. Only LegacyString produces this kind.
	KindString
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON-like structured value: nil, bool, json.Number, string,
// []any or map[string]any.
type Value = any

// Payload is a closed variant over binary, text and legacy string content.
// Content is fixed at construction; only the ack ID may change afterwards.
//
// The zero Payload is an empty Text payload without an ack ID. Copies share
// content but each copy owns its ack ID.
type Payload struct {
	kind   Kind
	binary []byte
	text   []Value
	str    string

	ackID  int32
	hasAck bool
}

// Binary builds a Binary payload that shares b without copying.
// The caller must not modify b afterwards.
func Binary(b []byte) Payload {
	return Payload{kind: KindBinary, binary: b}
}

// Text builds a Text payload holding values verbatim
func Text(values ...Value) Payload {
	if values == nil {
		values = []Value{}
	}
	return Payload{kind: KindText, text: values}
}

// LegacyString builds a String payload.
//
// Deprecated: use FromString, which promotes the string into a Text payload.
func LegacyString(s string) Payload {
	return Payload{kind: KindString, str: s}
}

// Kind reports the payload shape
func (p Payload) Kind() Kind {
	return p.kind
}

// AckID returns the ack ID and whether one is set
func (p Payload) AckID() (int32, bool) {
	return p.ackID, p.hasAck
}

// SetAckID sets the ack ID in place
func (p *Payload) SetAckID(id int32) {
	p.ackID = id
	p.hasAck = true
}

// ClearAckID removes the ack ID in place
func (p *Payload) ClearAckID() {
	p.ackID = 0
	p.hasAck = false
}

// WithAckID returns a copy of p with the ack ID replaced by id
func (p Payload) WithAckID(id int32) Payload {
	p.SetAckID(id)
	return p
}

// Attach converts v with From and sets its ack ID to id
func Attach(v any, id int32) Payload {
	return From(v).WithAckID(id)
}

// Data returns a view of the content without the ack ID
func (p Payload) Data() Data {
	switch p.kind {
	case KindBinary:
		return Data{kind: KindBinary, binary: p.binary}
	case KindString:
		return Data{kind: KindString, str: p.str}
	default:
		return Data{kind: KindText, text: p.text}
	}
}

// Equal reports whether p and o have the same kind, content and ack ID.
// Numbers are compared by their text, so json.Number("1.0") and
// json.Number("1.00") differ even though they denote the same value.
func (p Payload) Equal(o Payload) bool {
	if p.kind != o.kind || p.hasAck != o.hasAck {
		return false
	}
	if p.hasAck && p.ackID != o.ackID {
		return false
	}
	return p.Data().Equal(o.Data())
}

// String renders the payload for logs
func (p Payload) String() string {
	ack := "none"
	if p.hasAck {
		ack = fmt.Sprintf("%d", p.ackID)
	}
	switch p.kind {
	case KindBinary:
		return fmt.Sprintf("binary(%d bytes, ack=%s)", len(p.binary), ack)
	case KindString:
		return fmt.Sprintf("string(%q, ack=%s)", p.str, ack)
	default:
		return fmt.Sprintf("text(%v, ack=%s)", p.text, ack)
	}
}

func equalValues(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalBytes(a, b []byte) bool {
	return bytes.Equal(a, b)
}
