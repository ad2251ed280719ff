package input

import "github.com/maxpoletaev/lockstep/peer"

// UsedLog records, for every (frame, peer) pair the controller has ever
// simulated, the exact Input value that was fed into rollback.Harness.Advance
// at that moment — whether it came from an actual received input or from
// the prediction table.
//
// Prediction at simulation time always equals the most recent input
// received before that simulation; rather than re-deriving it from that
// invariant, the value used is recorded directly, so a later-arriving
// actual input can be compared
// against what was *actually simulated*, not against the live (and
// possibly since-moved-on) prediction slot. The comparison is always
// input.Input.Equal, avoiding the false negatives a reference-identity
// comparison would produce when a peer re-sends an identical input.
type UsedLog struct {
	used map[uint64]map[peer.ID]Input
}

// NewUsedLog creates an empty log.
func NewUsedLog() *UsedLog {
	return &UsedLog{used: make(map[uint64]map[peer.ID]Input)}
}

// Record stores the input value simulated for (f, p).
func (l *UsedLog) Record(f uint64, p peer.ID, in Input) {
	m, ok := l.used[f]
	if !ok {
		m = make(map[peer.ID]Input)
		l.used[f] = m
	}

	m[p] = in
}

// UsedFor returns the input recorded for (f, p), and whether anything was
// ever recorded.
func (l *UsedLog) UsedFor(f uint64, p peer.ID) (Input, bool) {
	m, ok := l.used[f]
	if !ok {
		return Null, false
	}

	in, ok := m[p]
	return in, ok
}

// EvictBefore drops every frame entry older than minFrame, mirroring
// Ring.EvictBefore so the two stay bounded together.
func (l *UsedLog) EvictBefore(minFrame uint64) {
	for f := range l.used {
		if f < minFrame {
			delete(l.used, f)
		}
	}
}
