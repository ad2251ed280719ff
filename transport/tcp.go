package transport

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxpoletaev/lockstep/peer"
)

// TCPAdapter is a transport.Adapter over one TCP connection per remote
// peer: a reader goroutine and a writer goroutine per connection,
// communicating through the adapter rather than ever touching simulation
// state directly.
type TCPAdapter struct {
	log logrus.FieldLogger

	mu       sync.RWMutex
	conns    map[peer.ID]*tcpConn
	batches  map[peer.ID]*inputBatch
	pings    map[pingKey]time.Time
	nextPing uint64
	cb       Callbacks
}

// pingKey identifies one in-flight ping by peer and nonce, so a reply
// from the wrong peer can never be matched against someone else's ping.
type pingKey struct {
	peer  peer.ID
	nonce uint64
}

type tcpConn struct {
	conn   net.Conn
	toSend chan []byte
	stop   chan struct{}

	// writeDone closes once writeLoop has returned, after draining
	// whatever was left in toSend. Close waits on it before tearing down
	// conn, so a flush queued right before shutdown is never raced by the
	// connection closing out from under the writer.
	writeDone chan struct{}
}

// NewTCPAdapter creates an adapter with no connections yet. Use AddConn to
// register each peer's connection once the (out-of-scope) lobby layer has
// established it.
func NewTCPAdapter(log logrus.FieldLogger) *TCPAdapter {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &TCPAdapter{
		log:     log,
		conns:   make(map[peer.ID]*tcpConn),
		batches: make(map[peer.ID]*inputBatch),
		pings:   make(map[pingKey]time.Time),
	}
}

// DialTCP connects to a remote peer's listener. A thin wrapper over
// net.Dial, grounded on netplay.Connect.
func DialTCP(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

// ListenTCP accepts a single inbound connection, grounded on
// netplay.Listen.
func ListenTCP(addr string) (net.Conn, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	return l.Accept()
}

// AddConn registers a live connection for peer p and starts its reader
// and writer goroutines.
func (a *TCPAdapter) AddConn(p peer.ID, conn net.Conn) {
	c := &tcpConn{
		conn:      conn,
		toSend:    make(chan []byte, 1024),
		stop:      make(chan struct{}),
		writeDone: make(chan struct{}),
	}

	a.mu.Lock()
	a.conns[p] = c
	a.mu.Unlock()

	go a.writeLoop(p, c)
	go a.readLoop(p, c)
}

// SetCallbacks wires the controller-owned receive hooks.
func (a *TCPAdapter) SetCallbacks(cb Callbacks) {
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()
}

func (a *TCPAdapter) writeLoop(p peer.ID, c *tcpConn) {
	defer close(c.writeDone)

	for {
		select {
		case <-c.stop:
			// Drain whatever was queued before stop fired (e.g. a final
			// flushed input batch from Close) instead of dropping it.
			for {
				select {
				case buf := <-c.toSend:
					_ = writeFramed(c.conn, buf)
				default:
					return
				}
			}
		case buf := <-c.toSend:
			if err := writeFramed(c.conn, buf); err != nil {
				a.log.WithField("peer", p).WithError(err).Warn("tcp transport: write failed")
				a.peerLost(p)
				return
			}
		}
	}
}

func (a *TCPAdapter) readLoop(p peer.ID, c *tcpConn) {
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		buf, err := readFramed(c.conn)
		if err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("tcp transport: read failed")
			a.peerLost(p)
			return
		}

		msg, err := decode(buf)
		if err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("tcp transport: malformed message")
			continue
		}

		a.dispatch(p, msg)
	}
}

// dispatch hands a decoded message to the controller's callbacks. These
// callbacks must only enqueue — TCPAdapter does not enforce that itself
// (it can't see into the callback), but Controller's implementation
// honors it.
func (a *TCPAdapter) dispatch(p peer.ID, msg wireMessage) {
	a.mu.RLock()
	cb := a.cb
	a.mu.RUnlock()

	switch msg.Type {
	case msgTypeInput:
		if cb == nil {
			return
		}

		entries, err := unpackInputBatch(msg.Payload)
		if err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("tcp transport: malformed input batch")
			return
		}

		for i, entry := range entries {
			cb.OnInput(p, msg.Frame+uint32(i), entry)
		}
	case msgTypeSyncTest:
		if cb != nil {
			cb.OnSyncTest(p, msg.Frame, msg.Checksum)
		}
	case msgTypePing:
		// Answered by the adapter itself, never handed to the controller.
		if err := a.send(p, wireMessage{Type: msgTypePong, Nonce: msg.Nonce}); err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("tcp transport: pong send failed")
		}
	case msgTypePong:
		rtt, ok := a.takePing(p, msg.Nonce)
		if ok && cb != nil {
			cb.OnPong(p, float64(rtt)/float64(time.Millisecond))
		}
	}
}

func (a *TCPAdapter) peerLost(p peer.ID) {
	a.mu.Lock()
	c, ok := a.conns[p]
	if ok {
		delete(a.conns, p)
	}
	for key := range a.pings {
		if key.peer == p {
			delete(a.pings, key)
		}
	}
	cb := a.cb
	a.mu.Unlock()

	if ok {
		close(c.stop)
		_ = c.conn.Close()
	}

	if cb != nil {
		cb.OnPeerLost(p)
	}
}

// SendInput buffers a best-effort input message for peer p, coalescing up
// to inputBatchSize consecutive frames into a single wire send to cut
// down on network writes.
func (a *TCPAdapter) SendInput(p peer.ID, frame uint32, payload []byte) error {
	startFrame, payloads := a.bufferInput(p, frame, payload)
	if payloads == nil {
		return nil
	}

	return a.send(p, wireMessage{Type: msgTypeInput, Frame: startFrame, Payload: packInputBatch(payloads)})
}

// bufferInput appends (frame, payload) to p's pending batch and hands back
// a batch for the caller to flush outside the lock, either because it's
// full or because frame would otherwise leave a gap in it (a local
// player releasing all input skips frames entirely, since captureLocalInput
// never calls SendInput for a null input).
func (a *TCPAdapter) bufferInput(p peer.ID, frame uint32, payload []byte) (uint32, [][]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.batches[p]
	if !ok {
		b = &inputBatch{}
		a.batches[p] = b
	}

	if !b.sequential(frame) {
		startFrame, payloads := b.startFrame, b.payloads
		b.reset()
		b.add(frame, payload)

		return startFrame, payloads
	}

	b.add(frame, payload)

	if !b.ready() {
		return 0, nil
	}

	startFrame, payloads := b.startFrame, b.payloads
	b.reset()

	return startFrame, payloads
}

// flushInput queues whatever is left of p's pending batch onto c's send
// channel, if anything. Called on Close, before a peer's connection is
// torn down, so a partial trailing batch is never silently dropped; the
// writer goroutine drains c.toSend before exiting on stop.
func (a *TCPAdapter) flushInput(p peer.ID, c *tcpConn) {
	a.mu.Lock()
	b, ok := a.batches[p]
	if !ok || b.empty() {
		a.mu.Unlock()
		return
	}

	startFrame, payloads := b.startFrame, b.payloads
	b.reset()
	a.mu.Unlock()

	msg := encode(wireMessage{Type: msgTypeInput, Frame: startFrame, Payload: packInputBatch(payloads)})

	select {
	case c.toSend <- msg:
	default:
		a.log.WithField("peer", p).Warn("tcp transport: send queue full, dropping final input batch")
	}
}

// SendSyncTest broadcasts a checksum for frame to peer p.
func (a *TCPAdapter) SendSyncTest(p peer.ID, frame uint32, checksum uint32) error {
	return a.send(p, wireMessage{Type: msgTypeSyncTest, Frame: frame, Checksum: checksum})
}

// SendPing starts a round-trip latency measurement against peer p. The
// matching pong, once it arrives, is reported via Callbacks.OnPong.
func (a *TCPAdapter) SendPing(p peer.ID) error {
	a.mu.Lock()
	a.nextPing++
	nonce := a.nextPing
	a.pings[pingKey{peer: p, nonce: nonce}] = time.Now()
	a.mu.Unlock()

	return a.send(p, wireMessage{Type: msgTypePing, Nonce: nonce})
}

// takePing looks up and removes the pending ping for (p, nonce), returning
// the elapsed round-trip time. A second or spurious pong for the same
// nonce is silently ignored.
func (a *TCPAdapter) takePing(p peer.ID, nonce uint64) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := pingKey{peer: p, nonce: nonce}

	sent, ok := a.pings[key]
	if !ok {
		return 0, false
	}

	delete(a.pings, key)

	return time.Since(sent), true
}

func (a *TCPAdapter) send(p peer.ID, msg wireMessage) error {
	a.mu.RLock()
	c, ok := a.conns[p]
	a.mu.RUnlock()

	if !ok {
		// Unknown/disconnected peer: best-effort, so this is not an error
		// worth surfacing to the controller.
		return nil
	}

	select {
	case c.toSend <- encode(msg):
	default:
		a.log.WithField("peer", p).Warn("tcp transport: send queue full, dropping message")
	}

	return nil
}

// Close tears down every connection, first flushing any partial input
// batch still pending for each peer. Each connection's writer goroutine is
// given a chance to drain and send that flush before the underlying
// connection is closed out from under it.
func (a *TCPAdapter) Close() error {
	a.mu.Lock()
	conns := a.conns
	a.conns = make(map[peer.ID]*tcpConn)
	a.mu.Unlock()

	for p, c := range conns {
		a.flushInput(p, c)
	}

	for _, c := range conns {
		close(c.stop)
	}

	for _, c := range conns {
		<-c.writeDone
		_ = c.conn.Close()
	}

	return nil
}

var _ Adapter = (*TCPAdapter)(nil)
