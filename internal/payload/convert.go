package payload

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"

	"github.com/goccy/go-json"
)

// Promote turns s into a structured value. Valid JSON is parsed (numbers are
// kept as json.Number); anything else is returned unchanged as a string value.
func Promote(s string) Value {
	v, ok := parse([]byte(s))
	if !ok {
		return s
	}
	return v
}

// parse decodes raw with goccy once the strict RFC 8259 check has passed.
// goccy alone accepts truncated literals such as "tru" and numbers such as
// "01" or "1.", which must stay strings.
func parse(raw []byte) (Value, bool) {
	if !stdjson.Valid(raw) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v Value
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// FromString builds a Text payload with the promoted string as its only element
func FromString(s string) Payload {
	return Text(Promote(s))
}

// FromStrings builds a Text payload promoting each string in order
func FromStrings(ss []string) Payload {
	values := make([]Value, len(ss))
	for i, s := range ss {
		values[i] = Promote(s)
	}
	return Text(values...)
}

// FromValue builds a Text payload holding v verbatim
func FromValue(v Value) Payload {
	return Text(v)
}

// FromValues builds a Text payload holding values verbatim
func FromValues(values []Value) Payload {
	return Text(values...)
}

// FromBytes builds a Binary payload from a private copy of b
func FromBytes(b []byte) Payload {
	owned := make([]byte, len(b))
	copy(owned, b)
	return Binary(owned)
}

// FromStaticBytes builds a Binary payload sharing b, which must never be
// modified (typically a package-level literal).
func FromStaticBytes(b []byte) Payload {
	return Binary(b)
}

// From converts any supported Go value into a Payload. It never fails:
// types without a dedicated conversion are normalised through JSON, and
// values that cannot be marshalled become their fmt representation.
func From(v any) Payload {
	switch t := v.(type) {
	case Payload:
		return t
	case *Payload:
		if t == nil {
			return Text()
		}
		return *t
	case string:
		return FromString(t)
	case []string:
		return FromStrings(t)
	case []byte:
		return FromBytes(t)
	case json.RawMessage:
		return FromString(string(t))
	case []Value:
		return FromValues(t)
	case nil, bool, json.Number, map[string]any:
		return FromValue(t)
	default:
		return FromValue(normalize(v))
	}
}

func normalize(v any) Value {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	if out, ok := parse(raw); ok {
		return out
	}
	return string(raw)
}
