package rollback_test

import (
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/transport"
)

// laggedAdapter is a transport.Adapter test fake that delivers messages a
// fixed number of logical ticks after they were sent, instead of the
// instant delivery transport.Loopback gives. Driving two paired instances'
// tickAndDeliver once per test iteration simulates a peer whose messages
// consistently arrive late enough to force a rollback.
type laggedAdapter struct {
	self       peer.ID
	peer       *laggedAdapter
	cb         transport.Callbacks
	delayTicks int
	tick       int
	queue      []laggedMsg
}

type laggedMsg struct {
	isSync   bool
	frame    uint32
	payload  []byte
	checksum uint32
	dueAt    int
}

func newLaggedPair(aID, bID peer.ID, delayTicks int) (a, b *laggedAdapter) {
	a = &laggedAdapter{self: aID, delayTicks: delayTicks}
	b = &laggedAdapter{self: bID, delayTicks: delayTicks}
	a.peer = b
	b.peer = a

	return a, b
}

func (l *laggedAdapter) SetCallbacks(cb transport.Callbacks) {
	l.cb = cb
}

func (l *laggedAdapter) Close() error {
	return nil
}

func (l *laggedAdapter) SendInput(_ peer.ID, frame uint32, payload []byte) error {
	cp := append([]byte(nil), payload...)
	l.peer.queue = append(l.peer.queue, laggedMsg{frame: frame, payload: cp, dueAt: l.peer.tick + l.delayTicks})

	return nil
}

func (l *laggedAdapter) SendSyncTest(_ peer.ID, frame uint32, checksum uint32) error {
	l.peer.queue = append(l.peer.queue, laggedMsg{isSync: true, frame: frame, checksum: checksum, dueAt: l.peer.tick + l.delayTicks})

	return nil
}

// SendPing is a no-op: latency sampling isn't what this fake exercises.
func (l *laggedAdapter) SendPing(_ peer.ID) error {
	return nil
}

// tickAndDeliver advances this adapter's own tick counter and hands every
// now-due message to its registered callbacks. Call once per controller
// Tick, before it.
func (l *laggedAdapter) tickAndDeliver() {
	l.tick++

	var keep []laggedMsg

	for _, m := range l.queue {
		if l.tick < m.dueAt {
			keep = append(keep, m)
			continue
		}

		if l.cb == nil {
			continue
		}

		if m.isSync {
			l.cb.OnSyncTest(l.peer.self, m.frame, m.checksum)
		} else {
			l.cb.OnInput(l.peer.self, m.frame, m.payload)
		}
	}

	l.queue = keep
}

var _ transport.Adapter = (*laggedAdapter)(nil)
