// Package peer defines the peer identity type shared by the input ring,
// simulation harness, and rollback controller. A peer identity is an
// opaque, totally ordered byte string, stable across the match — a Go
// string already satisfies that (stable, comparable, ordered by byte
// value), so no bespoke type is needed beyond a name.
package peer

// ID is an opaque, totally ordered peer identifier, stable for the
// duration of a match.
type ID string

// Less gives the ascending order harness iteration relies on, for both
// simulation advancement and checksum player folding.
func Less(a, b ID) bool {
	return a < b
}
