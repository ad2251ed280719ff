package rollback

import "github.com/maxpoletaev/lockstep/peer"

// queuedInput is one wire input message, parked until the next tick's
// drain step.
type queuedInput struct {
	frame   uint64
	payload []byte
}

type queuedSyncTest struct {
	frame    uint64
	checksum uint32
}

// OnInput implements transport.Callbacks. It only enqueues — the network
// goroutine that calls this must never block on, or reach into,
// simulation state.
func (c *Controller) OnInput(p peer.ID, frame uint32, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	c.recvMu.Lock()
	c.recvQueues[p] = append(c.recvQueues[p], queuedInput{frame: uint64(frame), payload: cp})
	c.recvMu.Unlock()
}

// OnSyncTest implements transport.Callbacks.
func (c *Controller) OnSyncTest(p peer.ID, frame uint32, checksum uint32) {
	c.recvMu.Lock()
	c.syncQueues[p] = append(c.syncQueues[p], queuedSyncTest{frame: uint64(frame), checksum: checksum})
	c.recvMu.Unlock()
}

// OnPeerLost implements transport.Callbacks.
func (c *Controller) OnPeerLost(p peer.ID) {
	c.recvMu.Lock()
	c.lostQueue = append(c.lostQueue, p)
	c.recvMu.Unlock()
}

// OnPong implements transport.Callbacks. Unlike the other callbacks, this
// one is safe to act on immediately rather than enqueue: the metrics sink
// is its own concurrency-safe accumulator, not simulation state.
func (c *Controller) OnPong(p peer.ID, rttMs float64) {
	if c.metrics != nil {
		c.metrics.RecordInputLag(rttMs)
	}
}

// drainRecv moves everything queued by the transport callbacks into
// controller-owned state, run once at the top of every tick. This is the
// single hop where cross-goroutine data becomes single-threaded data.
func (c *Controller) drainRecv() (inputs map[peer.ID][]queuedInput, syncTests map[peer.ID][]queuedSyncTest, lost []peer.ID) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	inputs = c.recvQueues
	syncTests = c.syncQueues
	lost = c.lostQueue

	c.recvQueues = make(map[peer.ID][]queuedInput)
	c.syncQueues = make(map[peer.ID][]queuedSyncTest)
	c.lostQueue = nil

	return inputs, syncTests, lost
}
