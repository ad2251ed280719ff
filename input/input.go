// Package input implements the peer-input data model: the opaque Input
// value type, the per-frame input ring, and the per-peer prediction
// table. Generalizes a two-fixed-peer
// localInput/remoteInput/speculatedInput ring buffer design to an
// arbitrary peer set, and swaps reference-identity prediction comparison
// for value equality.
package input

import "bytes"

// Input is an opaque, small, value-comparable payload. The rollback core
// never interprets its bytes beyond equality comparison and feeding it to
// rollback.Harness.Advance.
type Input struct {
	bytes []byte
}

// New wraps a byte payload as an Input. The caller's slice is copied so the
// Input is safe to retain past the call.
func New(b []byte) Input {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Input{bytes: cp}
}

// Bytes returns the input's payload. Callers must not mutate it.
func (i Input) Bytes() []byte {
	return i.bytes
}

// IsNull reports whether this is the zero Input (no bytes captured).
func (i Input) IsNull() bool {
	return len(i.bytes) == 0
}

// Equal compares two inputs by value, not identity: a peer re-sending a
// byte-identical input must still compare equal.
func (i Input) Equal(other Input) bool {
	return bytes.Equal(i.bytes, other.bytes)
}

// Null is the zero-value Input: no input ever recorded for a frame/peer
// pair.
var Null = Input{}
