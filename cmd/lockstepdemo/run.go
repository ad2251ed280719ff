package main

import (
	"fmt"
	"net"

	"github.com/maxpoletaev/lockstep/clock"
	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/metrics"
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/rollback"
	"github.com/maxpoletaev/lockstep/sim"
	"github.com/maxpoletaev/lockstep/transport"
)

func (o *opts) rollbackConfig() rollback.Config {
	return rollback.Config{
		MaxRollbackFrames:   o.maxRollback,
		InputDelayFrames:    o.inputDelay,
		MaxPredictionFrames: o.maxPredict,
		SyncTestInterval:    o.syncInterval,
		PingInterval:        o.frameRate * 2,
		FrameRate:           o.frameRate,
	}
}

func newWorld(seed uint32, a, b peer.ID) *sim.World {
	w := sim.New(sim.DefaultConfig(), sim.NopRules{}, seed)
	w.AddPlayer(a, sim.Vec2{X: 0, Y: 0})
	w.AddPlayer(b, sim.Vec2{X: 0, Y: 0})
	w.Init()

	return w
}

// run dispatches to the network session (--listen/--connect) or, absent
// both, to a single-process loopback demo driven entirely locally.
func run(o *opts) error {
	if o.listenAddr != "" || o.connectTo != "" {
		return runNetwork(o)
	}

	return runLoopback(o)
}

// runLoopback drives two in-process controllers over a transport.Loopback
// pair, grounded on the rollback package's own controller tests: only the
// local peer's window is shown, the remote side is scripted so the demo
// runs with no second machine or flags at all.
func runLoopback(o *opts) error {
	local := peer.ID(o.peerID)
	remote := peer.ID("sparring-partner")

	adapterA, adapterB := transport.NewLoopbackPair(local, remote)

	log := configureLogging(o.verbose)
	ms := metrics.NewSink(nil)

	worldA := newWorld(o.seed, local, remote)
	ctrlA := rollback.New(o.rollbackConfig(), log, clock.System{}, adapterA, ms)

	if err := ctrlA.Initialize(worldA, local); err != nil {
		return fmt.Errorf("initialize local controller: %w", err)
	}

	ctrlA.AddPeer(local, true, o.inputDelay)
	ctrlA.AddPeer(remote, false, o.inputDelay)

	worldB := newWorld(o.seed, local, remote)
	ctrlB := rollback.New(o.rollbackConfig(), log, clock.System{}, adapterB, nil)

	if err := ctrlB.Initialize(worldB, remote); err != nil {
		return fmt.Errorf("initialize sparring-partner controller: %w", err)
	}

	ctrlB.AddPeer(local, false, o.inputDelay)
	ctrlB.AddPeer(remote, true, o.inputDelay)

	tick := 0
	ctrlB.SetLocalInputSource(func() input.Input {
		tick++

		// A deterministic wandering pattern, so the sparring partner's
		// entity moves without a second keyboard.
		switch (tick / 30) % 4 {
		case 0:
			return input.New(sim.Buttons{Right: true}.Encode())
		case 1:
			return input.New(sim.Buttons{Down: true}.Encode())
		case 2:
			return input.New(sim.Buttons{Left: true}.Encode())
		default:
			return input.New(sim.Buttons{Up: true}.Encode())
		}
	})

	var localButtons sim.Buttons

	ctrlA.SetLocalInputSource(func() input.Input {
		if localButtons == (sim.Buttons{}) {
			return input.Null
		}

		return input.New(localButtons.Encode())
	})

	w := createWindow(o.scale, fmt.Sprintf("lockstep demo (%s)", local), o.verbose)
	defer w.Close()

	w.SetFrameRate(o.frameRate)
	w.ShowFPS = o.showFPS

	for !w.ShouldClose() {
		w.HandleHotKeys()
		localButtons = readLocalButtons()

		if err := ctrlB.Tick(); err != nil {
			log.WithError(err).Error("sparring-partner controller failed")
			break
		}

		if err := ctrlA.Tick(); err != nil {
			log.WithError(err).Error("local controller failed")
			break
		}

		w.Refresh(ctrlA.GetRenderState())
	}

	return nil
}

// runNetwork drives a single controller over a real TCP connection to a
// second lockstepdemo instance, following a drain-then-simulate loop
// (handle incoming messages, then advance one frame) generalized to
// Controller.Tick.
func runNetwork(o *opts) error {
	if o.remoteID == "" {
		return fmt.Errorf("--remote-peer is required with --listen/--connect")
	}

	local := peer.ID(o.peerID)
	remote := peer.ID(o.remoteID)

	log := configureLogging(o.verbose)
	adapter := transport.NewTCPAdapter(log)

	var (
		conn net.Conn
		err  error
	)

	if o.listenAddr != "" {
		log.Infof("waiting for a peer on %s...", o.listenAddr)
		conn, err = transport.ListenTCP(o.listenAddr)
	} else {
		log.Infof("connecting to %s...", o.connectTo)
		conn, err = transport.DialTCP(o.connectTo)
	}

	if err != nil {
		return fmt.Errorf("establish connection: %w", err)
	}

	adapter.AddConn(remote, conn)

	defer conn.Close()
	defer adapter.Close()

	log.Info("connected, starting session")

	ms := metrics.NewSink(nil)
	w := newWorld(o.seed, local, remote)

	ctrl := rollback.New(o.rollbackConfig(), log, clock.System{}, adapter, ms)
	if err := ctrl.Initialize(w, local); err != nil {
		return fmt.Errorf("initialize controller: %w", err)
	}

	ctrl.AddPeer(local, true, o.inputDelay)
	ctrl.AddPeer(remote, false, o.inputDelay)

	ctrl.DesyncDelegate = func(ev rollback.DesyncEvent) {
		log.WithField("frame", ev.Frame).Warnf("desync detected: local=%08x remote=%08x", ev.Local, ev.Theirs)
	}

	var localButtons sim.Buttons

	ctrl.SetLocalInputSource(func() input.Input {
		if localButtons == (sim.Buttons{}) {
			return input.Null
		}

		return input.New(localButtons.Encode())
	})

	win := createWindow(o.scale, fmt.Sprintf("lockstep demo (%s)", local), o.verbose)
	defer win.Close()

	win.SetFrameRate(o.frameRate)
	win.ShowFPS = o.showFPS
	win.ShowPing = true
	win.QuitDelegate = func() {
		log.Info("closing session")
	}

	for !win.ShouldClose() {
		win.HandleHotKeys()
		localButtons = readLocalButtons()

		if err := ctrl.Tick(); err != nil {
			log.WithError(err).Error("controller failed")
			break
		}

		win.SetPingInfo(int64(ctrl.GetMetrics().AverageInputLagMs))
		win.Refresh(ctrl.GetRenderState())
	}

	return nil
}
