// Package transport implements a narrow peer transport adapter: three send
// primitives (SendInput/SendSyncTest/SendPing) and four receive callbacks
// the rollback controller supplies (OnInput/OnSyncTest/OnPeerLost/OnPong).
// The adapter never learns simulation content, and the controller never
// learns network details — it only ever sees peer.ID and opaque bytes.
//
// Callbacks must not invoke simulation operations directly: every
// implementation here only enqueues into a channel/buffer that the next
// tick drains, rather than calling into the simulation directly from the
// network goroutine.
package transport

import "github.com/maxpoletaev/lockstep/peer"

// Callbacks are the controller-owned receive hooks. Frame numbers and
// checksums are little-endian 32-bit unsigned on the wire
type Callbacks interface {
	OnInput(p peer.ID, frame uint32, payload []byte)
	OnSyncTest(p peer.ID, frame uint32, checksum uint32)
	OnPeerLost(p peer.ID)

	// OnPong reports a completed ping round trip: rttMs is the wall-clock
	// delay between the matching SendPing call and this reply arriving.
	// A ping is answered by the adapter itself, not the controller — the
	// controller only ever observes the round trip.
	OnPong(p peer.ID, rttMs float64)
}

// Adapter is the send side of the narrow transport interface. A single
// Adapter instance may address many peers; which peers exist at all is
// provided by the (out of scope) lobby/matchmaking layer.
type Adapter interface {
	// SendInput is best-effort, unordered, unreliable.
	SendInput(p peer.ID, frame uint32, payload []byte) error

	// SendSyncTest broadcasts a checksum for the given frame.
	SendSyncTest(p peer.ID, frame uint32, checksum uint32) error

	// SendPing starts a round-trip latency measurement against peer p.
	// The adapter answers a received ping on its own, then reports the
	// completed round trip for a locally-sent ping via Callbacks.OnPong.
	SendPing(p peer.ID) error

	// SetCallbacks wires the controller's receive hooks. Must be called
	// before the adapter starts delivering messages.
	SetCallbacks(cb Callbacks)

	// Close releases any network resources the adapter holds.
	Close() error
}
