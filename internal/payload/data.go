package payload

// Data is a read-only view over a Payload's content. It carries no ack ID.
//
// Data references the payload's storage: it must not outlive the payload it
// came from, and the slices it returns must not be modified.
type Data struct {
	kind   Kind
	binary []byte
	text   []Value
	str    string
}

// Kind reports the shape of the viewed content
func (d Data) Kind() Kind {
	return d.kind
}

// Bytes returns the binary content, or nil for other kinds
func (d Data) Bytes() []byte {
	return d.binary
}

// Values returns the text elements, or nil for other kinds
func (d Data) Values() []Value {
	return d.text
}

// Raw returns the legacy string content, or "" for other kinds
func (d Data) Raw() string {
	return d.str
}

// Len is the number of bytes, elements or string bytes depending on kind
func (d Data) Len() int {
	switch d.kind {
	case KindBinary:
		return len(d.binary)
	case KindString:
		return len(d.str)
	default:
		return len(d.text)
	}
}

// Equal reports whether two views hold the same kind and content.
// json.Number values match only when their text matches.
func (d Data) Equal(o Data) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindBinary:
		return equalBytes(d.binary, o.binary)
	case KindString:
		return d.str == o.str
	default:
		return equalValues(d.text, o.text)
	}
}
