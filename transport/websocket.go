package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/maxpoletaev/lockstep/peer"
)

// WebSocketAdapter is a transport.Adapter over one gorilla/websocket
// connection per remote peer. Same shape as TCPAdapter, for deployments
// that relay peer connections through an HTTP(S) front door instead of
// raw TCP.
type WebSocketAdapter struct {
	log logrus.FieldLogger

	mu       sync.RWMutex
	conns    map[peer.ID]*wsConn
	batches  map[peer.ID]*inputBatch
	pings    map[pingKey]time.Time
	nextPing uint64
	cb       Callbacks
}

type wsConn struct {
	conn   *websocket.Conn
	toSend chan []byte
	stop   chan struct{}
	mu     sync.Mutex // serializes writes, as gorilla/websocket requires

	// writeDone closes once writeLoop has returned, after draining
	// whatever was left in toSend. Close waits on it before tearing down
	// conn, so a flush queued right before shutdown is never raced by the
	// connection closing out from under the writer.
	writeDone chan struct{}
}

// NewWebSocketAdapter creates an adapter with no connections yet.
func NewWebSocketAdapter(log logrus.FieldLogger) *WebSocketAdapter {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &WebSocketAdapter{
		log:     log,
		conns:   make(map[peer.ID]*wsConn),
		batches: make(map[peer.ID]*inputBatch),
		pings:   make(map[pingKey]time.Time),
	}
}

// AddConn registers a live, already-upgraded connection for peer p.
func (a *WebSocketAdapter) AddConn(p peer.ID, conn *websocket.Conn) {
	c := &wsConn{
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
func (a *WebSocketAdapter) SetCallbacks(cb Callbacks) {
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()
}

func (a *WebSocketAdapter) writeLoop(p peer.ID, c *wsConn) {
	defer close(c.writeDone)

	write := func(buf []byte) error {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.BinaryMessage, buf)
		c.mu.Unlock()
		return err
	}

	for {
		select {
		case <-c.stop:
			// Drain whatever was queued before stop fired (e.g. a final
			// flushed input batch from Close) instead of dropping it.
			for {
				select {
				case buf := <-c.toSend:
					_ = write(buf)
				default:
					return
				}
			}
		case buf := <-c.toSend:
			if err := write(buf); err != nil {
				a.log.WithField("peer", p).WithError(err).Warn("websocket transport: write failed")
				a.peerLost(p)
				return
			}
		}
	}
}

func (a *WebSocketAdapter) readLoop(p peer.ID, c *wsConn) {
	for {
		mtype, buf, err := c.conn.ReadMessage()
		if err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("websocket transport: read failed")
			a.peerLost(p)
			return
		}

		if mtype != websocket.BinaryMessage {
			continue
		}

		msg, err := decode(buf)
		if err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("websocket transport: malformed message")
			continue
		}

		a.dispatch(p, msg)
	}
}

func (a *WebSocketAdapter) dispatch(p peer.ID, msg wireMessage) {
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
			a.log.WithField("peer", p).WithError(err).Warn("websocket transport: malformed input batch")
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
		if err := a.send(p, wireMessage{Type: msgTypePong, Nonce: msg.Nonce}); err != nil {
			a.log.WithField("peer", p).WithError(err).Warn("websocket transport: pong send failed")
		}
	case msgTypePong:
		rtt, ok := a.takePing(p, msg.Nonce)
		if ok && cb != nil {
			cb.OnPong(p, float64(rtt)/float64(time.Millisecond))
		}
	}
}

func (a *WebSocketAdapter) peerLost(p peer.ID) {
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
func (a *WebSocketAdapter) SendInput(p peer.ID, frame uint32, payload []byte) error {
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
func (a *WebSocketAdapter) bufferInput(p peer.ID, frame uint32, payload []byte) (uint32, [][]byte) {
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
func (a *WebSocketAdapter) flushInput(p peer.ID, c *wsConn) {
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
		a.log.WithField("peer", p).Warn("websocket transport: send queue full, dropping final input batch")
	}
}

// SendSyncTest broadcasts a checksum for frame to peer p.
func (a *WebSocketAdapter) SendSyncTest(p peer.ID, frame uint32, checksum uint32) error {
	return a.send(p, wireMessage{Type: msgTypeSyncTest, Frame: frame, Checksum: checksum})
}

// SendPing starts a round-trip latency measurement against peer p. The
// matching pong, once it arrives, is reported via Callbacks.OnPong.
func (a *WebSocketAdapter) SendPing(p peer.ID) error {
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
func (a *WebSocketAdapter) takePing(p peer.ID, nonce uint64) (time.Duration, bool) {
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

func (a *WebSocketAdapter) send(p peer.ID, msg wireMessage) error {
	a.mu.RLock()
	c, ok := a.conns[p]
	a.mu.RUnlock()

	if !ok {
		return nil
	}

	select {
	case c.toSend <- encode(msg):
	default:
		a.log.WithField("peer", p).Warn("websocket transport: send queue full, dropping message")
	}

	return nil
}

// Close tears down every connection, first flushing any partial input
// batch still pending for each peer.
func (a *WebSocketAdapter) Close() error {
	a.mu.Lock()
	conns := a.conns
	a.conns = make(map[peer.ID]*wsConn)
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

var _ Adapter = (*WebSocketAdapter)(nil)
