package transport

import "github.com/maxpoletaev/lockstep/peer"

// Loopback is an in-memory Adapter pair for tests and the bundled demo:
// messages sent on one side are delivered synchronously to the other
// side's callbacks. It still respects the "callbacks must not invoke
// simulation directly" contract — delivery just calls the registered
// Callbacks, same as a real adapter would from its network goroutine.
type Loopback struct {
	selfID peer.ID
	peer   *Loopback
	cb     Callbacks
}

// NewLoopbackPair creates two linked adapters: aID/bID are how each side
// identifies itself to the other, so a.SendInput delivers to b's callbacks
// tagged with aID as the sender, and vice versa.
func NewLoopbackPair(aID, bID peer.ID) (a, b *Loopback) {
	a = &Loopback{selfID: aID}
	b = &Loopback{selfID: bID}
	a.peer = b
	b.peer = a

	return a, b
}

// SetCallbacks wires the controller's receive hooks.
func (l *Loopback) SetCallbacks(cb Callbacks) {
	l.cb = cb
}

// SendInput delivers directly to the paired adapter's callbacks.
func (l *Loopback) SendInput(p peer.ID, frame uint32, payload []byte) error {
	if l.peer.cb != nil {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		l.peer.cb.OnInput(l.selfID, frame, cp)
	}

	return nil
}

// SendSyncTest delivers directly to the paired adapter's callbacks.
func (l *Loopback) SendSyncTest(p peer.ID, frame uint32, checksum uint32) error {
	if l.peer.cb != nil {
		l.peer.cb.OnSyncTest(l.selfID, frame, checksum)
	}

	return nil
}

// SendPing completes synchronously: Loopback has no real network to
// measure, so it reports back through the local side's own callbacks
// immediately with a zero round trip.
func (l *Loopback) SendPing(p peer.ID) error {
	if l.cb != nil {
		l.cb.OnPong(l.peer.selfID, 0)
	}

	return nil
}

// Close is a no-op for Loopback.
func (l *Loopback) Close() error {
	return nil
}

var _ Adapter = (*Loopback)(nil)
