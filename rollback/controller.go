// Package rollback implements the GGPO-style lockstep controller:
// prediction, rollback detection and resimulation, snapshot management,
// and periodic desync detection, driven over a narrow transport.Adapter
// and an arbitrary simulation Harness. Generalizes a two-fixed-peer
// rollback session into an arbitrary-peer-count controller over any
// Harness implementation, with an injected-clock fixed-timestep
// scheduler grounded on mine-and-die/server/internal/sim.Loop.
package rollback

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxpoletaev/lockstep/clock"
	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/metrics"
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/render"
	"github.com/maxpoletaev/lockstep/snapshot"
	"github.com/maxpoletaev/lockstep/transport"
)

// Controller is the rollback session owner. All fields above the recvMu
// block are touched only by the single goroutine that calls Tick (either
// the caller directly, or Run's internal loop goroutine) — the contract
// calls "single-threaded cooperative" execution.
type Controller struct {
	log     logrus.FieldLogger
	clk     clock.Clock
	adapter transport.Adapter
	metrics *metrics.Sink
	cfg     Config

	state State

	harness   Harness
	localPeer peer.ID
	localFn   func() input.Input

	peers map[peer.ID]*Peer

	inputRing *input.Ring
	usedLog   *input.UsedLog
	snapshots *snapshot.Ring

	currentFrame   uint64
	confirmedFrame uint64

	fatalErr error

	// Delegates: optional caller-supplied hooks for non-fatal and fatal
	// events, assigned as func fields rather than exposed over a channel.
	DesyncDelegate     func(DesyncEvent)
	FatalDelegate      func(error)
	PeerLostDelegate   func(peer.ID)
	StaleInputDelegate func(StaleInputEvent)

	// recvMu guards exactly the three queues transport callbacks append
	// to; everything else above is single-writer.
	recvMu     sync.Mutex
	recvQueues map[peer.ID][]queuedInput
	syncQueues map[peer.ID][]queuedSyncTest
	lostQueue  []peer.ID

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an uninitialized Controller. Call Initialize before adding
// peers or starting the loop.
func New(cfg Config, log logrus.FieldLogger, clk clock.Clock, adapter transport.Adapter, ms *metrics.Sink) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if clk == nil {
		clk = clock.System{}
	}

	return &Controller{
		log:        log,
		clk:        clk,
		adapter:    adapter,
		metrics:    ms,
		cfg:        cfg.normalize(),
		state:      StateUninitialized,
		peers:      make(map[peer.ID]*Peer),
		recvQueues: make(map[peer.ID][]queuedInput),
		syncQueues: make(map[peer.ID][]queuedSyncTest),
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// FatalErr returns the error that moved the controller into StateFatal, or
// nil if it never did.
func (c *Controller) FatalErr() error {
	return c.fatalErr
}

// Initialize wires the harness and local peer id, takes the frame-0
// snapshot, and registers the controller as the adapter's callback
// target. Returns *AlreadyInitializedError if called more than once.
func (c *Controller) Initialize(h Harness, localPeerID peer.ID) error {
	if c.state != StateUninitialized {
		return &AlreadyInitializedError{}
	}

	c.harness = h
	c.localPeer = localPeerID
	c.inputRing = input.NewRing()
	c.usedLog = input.NewUsedLog()
	c.snapshots = snapshot.NewRing(snapshot.Length(c.cfg.MaxRollbackFrames, c.cfg.SnapshotInterval))

	blob, err := h.SaveState()
	if err != nil {
		return &StateCorruptError{Err: err}
	}
	c.snapshots.Write(0, blob, h.Checksum())

	if c.adapter != nil {
		c.adapter.SetCallbacks(c)
	}

	c.state = StateIdle

	return nil
}

// AddPeer registers a participant. inputDelay of 0 uses the session
// default (Config.InputDelayFrames).
func (c *Controller) AddPeer(id peer.ID, local bool, inputDelay int) {
	if inputDelay <= 0 {
		inputDelay = c.cfg.InputDelayFrames
	}

	c.peers[id] = &Peer{ID: id, Local: local, InputDelay: inputDelay}
}

// RemovePeer drops a participant from the peer table.
func (c *Controller) RemovePeer(id peer.ID) {
	delete(c.peers, id)
}

// SetLocalInputSource wires the function the controller polls once per
// tick for this session's local input.
func (c *Controller) SetLocalInputSource(fn func() input.Input) {
	c.localFn = fn
}

// GetMetrics returns a read-only snapshot of the session's running
// counters. Returns the zero Snapshot if no metrics sink was configured.
func (c *Controller) GetMetrics() metrics.Snapshot {
	if c.metrics == nil {
		return metrics.Snapshot{}
	}

	return c.metrics.Snapshot()
}

// GetRenderState returns the harness's current render.State, if it
// implements Renderable, or the zero value otherwise.
func (c *Controller) GetRenderState() render.State {
	if r, ok := c.harness.(Renderable); ok {
		return r.RenderState()
	}

	return render.State{}
}

// Tick runs exactly one frame of the rollback algorithm. Safe to call
// directly from a test for deterministic, non-realtime-driven control;
// Run calls it internally on the configured cadence.
func (c *Controller) Tick() error {
	if c.state == StateFatal {
		return c.fatalErr
	}

	if c.state == StateIdle {
		c.state = StateRunning
	}

	if err := c.tick(); err != nil {
		c.state = StateFatal
		c.fatalErr = err

		if c.FatalDelegate != nil {
			c.FatalDelegate(err)
		}

		return err
	}

	return nil
}

// Start begins the fixed-timestep loop in its own goroutine, driven by
// the controller's injected clock. Returns immediately; call Stop to halt
// it.
func (c *Controller) Start() error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.state != StateIdle {
		return &InvalidStateError{Want: StateIdle, Got: c.state}
	}

	c.state = StateRunning
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.run(c.stopCh, c.doneCh)

	return nil
}

// Stop halts the loop and waits for it to exit. Honored only between
// ticks, never mid-tick
func (c *Controller) Stop() error {
	c.runMu.Lock()
	stopCh, doneCh := c.stopCh, c.doneCh
	running := c.state == StateRunning
	c.runMu.Unlock()

	if !running {
		return nil
	}

	close(stopCh)
	<-doneCh

	c.runMu.Lock()
	if c.state == StateRunning {
		c.state = StateIdle
	}
	c.runMu.Unlock()

	return nil
}

// run is the fixed-timestep accumulator loop, generalized with an
// injected clock and a bounded catch-up, the way
// mine-and-die/server/internal/sim.Loop.Run caps resimulation after a
// stall instead of spiral-of-deathing through an unbounded backlog of
// ticks.
func (c *Controller) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	rate := c.cfg.FrameRate
	if rate <= 0 {
		rate = 60
	}

	const maxCatchUpTicks = 5

	tickDuration := time.Second / time.Duration(rate)
	ticker := time.NewTicker(tickDuration)
	defer ticker.Stop()

	last := c.clk.Now()
	var accumulator time.Duration

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := c.clk.Now()
			accumulator += now.Sub(last)
			last = now

			ticks := 0
			for accumulator >= tickDuration && ticks < maxCatchUpTicks {
				if err := c.Tick(); err != nil {
					return
				}

				accumulator -= tickDuration
				ticks++
			}

			if ticks == maxCatchUpTicks {
				accumulator = 0
			}
		}
	}
}

var _ transport.Callbacks = (*Controller)(nil)
