package rollback

import (
	"sort"

	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/peer"
)

// tick runs one frame of the rollback algorithm: drain network input,
// apply it, roll back and resimulate if a prediction was wrong, advance
// the confirmed frame, then exchange sync-test checksums and evict stale
// history. Any error returned is fatal: Tick moves the controller into
// StateFatal and never calls tick again.
func (c *Controller) tick() error {
	c.currentFrame++

	inputsByPeer, syncByPeer, lost := c.drainRecv()

	c.applyLostPeers(lost)
	c.applyInputs(inputsByPeer)
	c.captureLocalInput()

	if target, ok := c.findRollbackTarget(); ok {
		if err := c.rollbackTo(target); err != nil {
			return err
		}
	}

	if _, err := c.simulateFrame(c.currentFrame); err != nil {
		return &CallbackError{Frame: c.currentFrame, Err: err}
	}

	c.recomputeConfirmedFrame()
	c.broadcastSyncTestIfDue()
	c.applySyncTests(syncByPeer)
	c.broadcastPingsIfDue()
	c.evict()

	return nil
}

func (c *Controller) applyLostPeers(lost []peer.ID) {
	for _, p := range lost {
		delete(c.peers, p)

		if c.PeerLostDelegate != nil {
			c.PeerLostDelegate(p)
		}
	}
}

// applyInputs moves every queued wire input into the input ring, applying
// staleness/future filtering. Entries still too far ahead of the
// prediction window are pushed back onto the receive queue for a later
// tick.
func (c *Controller) applyInputs(byPeer map[peer.ID][]queuedInput) {
	for p, queue := range byPeer {
		// SendInput is documented as unordered: sort by frame so the
		// future-frame cutoff below can't requeue an in-window entry that
		// merely arrived after one that was further ahead.
		sort.Slice(queue, func(i, j int) bool { return queue[i].frame < queue[j].frame })

		for i, q := range queue {
			if q.frame+uint64(c.cfg.MaxRollbackFrames) < c.currentFrame {
				c.log.WithField("peer", p).WithField("frame", q.frame).Warn("rollback: dropped stale input")

				if c.StaleInputDelegate != nil {
					c.StaleInputDelegate(StaleInputEvent{Peer: p, Frame: q.frame})
				}
				continue
			}

			if q.frame > c.currentFrame+uint64(c.cfg.MaxPredictionFrames) {
				c.requeueInputs(p, queue[i:])
				break
			}

			c.inputRing.Add(q.frame, p, input.New(q.payload))

			if pl, ok := c.peers[p]; ok && q.frame > pl.LastConfirmedFrame {
				pl.LastConfirmedFrame = q.frame
			}
		}
	}
}

func (c *Controller) requeueInputs(p peer.ID, rest []queuedInput) {
	if len(rest) == 0 {
		return
	}

	c.recvMu.Lock()
	c.recvQueues[p] = append(append([]queuedInput{}, rest...), c.recvQueues[p]...)
	c.recvMu.Unlock()
}

// captureLocalInput polls the local input source and, when non-null,
// records it at current+delay and broadcasts it to every other peer.
func (c *Controller) captureLocalInput() {
	if c.localFn == nil {
		return
	}

	local, ok := c.peers[c.localPeer]
	if !ok {
		return
	}

	in := c.localFn()
	if in.IsNull() {
		return
	}

	target := c.currentFrame + uint64(local.InputDelay)
	c.inputRing.Add(target, c.localPeer, in)

	if c.adapter == nil {
		return
	}

	for id, p := range c.peers {
		if p.Local {
			continue
		}

		if err := c.adapter.SendInput(id, uint32(target), in.Bytes()); err != nil {
			c.log.WithField("peer", id).WithError(err).Warn("rollback: send input failed")
		}
	}
}

// findRollbackTarget finds the earliest frame, strictly after
// confirmedFrame, where a peer's now-known actual input disagrees with
// what was actually fed into Advance at simulation time.
func (c *Controller) findRollbackTarget() (uint64, bool) {
	for f := c.confirmedFrame + 1; f <= c.currentFrame; f++ {
		for _, p := range c.peers {
			if p.Local {
				continue
			}

			actual, ok := c.inputRing.Actual(f, p.ID)
			if !ok {
				continue
			}

			used, ok := c.usedLog.UsedFor(f, p.ID)
			if !ok {
				continue
			}

			if !actual.Equal(used) {
				return f, true
			}
		}
	}

	return 0, false
}

// rollbackTo resimulates from the nearest retained snapshot taken before
// target through currentFrame-1 (currentFrame itself is simulated
// separately by the caller). A snapshot labelled f holds the state after
// frame f was simulated, so the base must precede target for target
// itself to be resimulated.
func (c *Controller) rollbackTo(target uint64) error {
	base, ok := c.snapshots.NearestAtOrBefore(target - 1)
	if !ok {
		return &RollbackMissError{TargetFrame: target, OldestKept: c.oldestRetainedSnapshotFrame()}
	}

	if err := c.harness.LoadState(base.State); err != nil {
		return &StateCorruptError{Err: err}
	}

	rolledBack := c.currentFrame - 1 - base.Frame

	for f := base.Frame + 1; f < c.currentFrame; f++ {
		if _, err := c.simulateFrame(f); err != nil {
			return &CallbackError{Frame: f, Err: err}
		}
	}

	if c.metrics != nil {
		c.metrics.RecordRollback(rolledBack)
	}

	return nil
}

func (c *Controller) oldestRetainedSnapshotFrame() uint64 {
	var (
		oldest uint64
		found  bool
	)

	for f := uint64(0); f <= c.currentFrame; f++ {
		if s, ok := c.snapshots.At(f); ok {
			if !found || s.Frame < oldest {
				oldest, found = s.Frame, true
			}
		}
	}

	return oldest
}

// simulateFrame gathers every peer's input for f (actual if known,
// otherwise the prediction table, otherwise null), advances the harness,
// records what was actually used for future rollback comparisons, and
// writes an opportunistic snapshot on the configured cadence.
func (c *Controller) simulateFrame(f uint64) (uint32, error) {
	ids := make([]peer.ID, 0, len(c.peers))
	for id := range c.peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	inputs := make(map[peer.ID]input.Input, len(ids))

	for _, id := range ids {
		in := c.inputRing.Get(f, id)
		inputs[id] = in

		c.usedLog.Record(f, id, in)

		if p := c.peers[id]; p != nil && !p.Local {
			if _, actual := c.inputRing.Actual(f, id); !actual && c.metrics != nil {
				c.metrics.RecordPredictedInput()
			}
		}
	}

	if err := c.harness.Advance(inputs); err != nil {
		return 0, err
	}

	checksum := c.harness.Checksum()

	if c.cfg.SnapshotInterval > 0 && f%uint64(c.cfg.SnapshotInterval) == 0 {
		blob, err := c.harness.SaveState()
		if err != nil {
			return 0, err
		}

		c.snapshots.Write(f, blob, checksum)
	}

	return checksum, nil
}

// recomputeConfirmedFrame takes the minimum, across non-local peers, of
// their last confirmed frame. With no remote peers, every frame is
// trivially confirmed as it's simulated.
func (c *Controller) recomputeConfirmedFrame() {
	var (
		min   uint64
		found bool
	)

	for _, p := range c.peers {
		if p.Local {
			continue
		}

		if !found || p.LastConfirmedFrame < min {
			min, found = p.LastConfirmedFrame, true
		}
	}

	if !found {
		c.confirmedFrame = c.currentFrame
		return
	}

	c.confirmedFrame = min
}

// broadcastSyncTestIfDue sends the current frame's checksum to every
// remote peer once every SyncTestInterval frames, for desync detection.
func (c *Controller) broadcastSyncTestIfDue() {
	if c.adapter == nil || c.cfg.SyncTestInterval <= 0 {
		return
	}

	if c.currentFrame%uint64(c.cfg.SyncTestInterval) != 0 {
		return
	}

	checksum := c.harness.Checksum()

	for id, p := range c.peers {
		if p.Local {
			continue
		}

		if err := c.adapter.SendSyncTest(id, uint32(c.currentFrame), checksum); err != nil {
			c.log.WithField("peer", id).WithError(err).Warn("rollback: send sync test failed")
		}
	}
}

// broadcastPingsIfDue pings every remote peer once every PingInterval
// frames, sampling round-trip latency via the matching OnPong callback.
func (c *Controller) broadcastPingsIfDue() {
	if c.adapter == nil || c.cfg.PingInterval <= 0 {
		return
	}

	if c.currentFrame%uint64(c.cfg.PingInterval) != 0 {
		return
	}

	for id, p := range c.peers {
		if p.Local {
			continue
		}

		if err := c.adapter.SendPing(id); err != nil {
			c.log.WithField("peer", id).WithError(err).Warn("rollback: send ping failed")
		}
	}
}

// applySyncTests processes every sync-test message received since the
// last tick: look up the local snapshot at the exact same frame and
// compare checksums. A frame no longer retained is silently ignored — it
// has already aged out of the rollback window, so there is nothing
// useful left to compare.
func (c *Controller) applySyncTests(byPeer map[peer.ID][]queuedSyncTest) {
	for p, queue := range byPeer {
		for _, q := range queue {
			local, ok := c.snapshots.At(q.frame)
			if !ok {
				continue
			}

			if local.Checksum != q.checksum {
				ev := DesyncEvent{Peer: p, Frame: q.frame, Local: local.Checksum, Theirs: q.checksum}

				if c.DesyncDelegate != nil {
					c.DesyncDelegate(ev)
				}
			}
		}
	}
}

// evict drops input ring and used-log entries older than the rollback
// window plus the configured eviction margin.
func (c *Controller) evict() {
	threshold := uint64(c.cfg.MaxRollbackFrames + c.cfg.EvictionMargin)

	if c.currentFrame <= threshold {
		return
	}

	min := c.currentFrame - threshold

	c.inputRing.EvictBefore(min)
	c.usedLog.EvictBefore(min)
}
