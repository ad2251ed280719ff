package input

import (
	"sort"

	"github.com/maxpoletaev/lockstep/peer"
)

// frameEntry holds every peer's recorded input for a single frame. At most
// one input per peer per frame.
type frameEntry struct {
	frame  uint64
	inputs map[peer.ID]Input
}

// Ring is the per-frame input map plus the per-peer prediction table. It
// is not a fixed-size ring despite the name — eviction is driven
// explicitly by EvictBefore, called once per controller tick.
type Ring struct {
	entries    map[uint64]*frameEntry
	prediction map[peer.ID]Input
}

// NewRing creates an empty input ring.
func NewRing() *Ring {
	return &Ring{
		entries:    make(map[uint64]*frameEntry),
		prediction: make(map[peer.ID]Input),
	}
}

// Add records peer p's input for frame f, overwriting the ring entry for
// (f, p) if one already exists, and refreshes the prediction slot for p
// (predictions are always the most recently received input). It reports
// whether this was a genuinely new observation (the stored value differs
// from whatever was there before), which callers use to decide whether a
// rollback should be considered.
func (r *Ring) Add(f uint64, p peer.ID, in Input) (changed bool) {
	entry, ok := r.entries[f]
	if !ok {
		entry = &frameEntry{frame: f, inputs: make(map[peer.ID]Input)}
		r.entries[f] = entry
	}

	prev, hadPrev := entry.inputs[p]
	entry.inputs[p] = in
	r.prediction[p] = in

	return !hadPrev || !prev.Equal(in)
}

// Actual returns the input actually recorded for (f, p), and whether one
// was recorded at all (as opposed to only predicted).
func (r *Ring) Actual(f uint64, p peer.ID) (Input, bool) {
	entry, ok := r.entries[f]
	if !ok {
		return Null, false
	}

	in, ok := entry.inputs[p]
	return in, ok
}

// Get returns the input for (f, p): the ring entry if present, otherwise
// the peer's prediction slot, otherwise Null.
func (r *Ring) Get(f uint64, p peer.ID) Input {
	if in, ok := r.Actual(f, p); ok {
		return in
	}

	if in, ok := r.prediction[p]; ok {
		return in
	}

	return Null
}

// Prediction returns peer p's current prediction slot (the last input
// actually received from them), and whether one has ever been set.
func (r *Ring) Prediction(p peer.ID) (Input, bool) {
	in, ok := r.prediction[p]
	return in, ok
}

// EvictBefore removes every frame entry older than minFrame.
func (r *Ring) EvictBefore(minFrame uint64) {
	for f := range r.entries {
		if f < minFrame {
			delete(r.entries, f)
		}
	}
}

// Frames returns the frame numbers currently held in the ring, sorted
// ascending. Intended for tests and diagnostics, not the hot tick path.
func (r *Ring) Frames() []uint64 {
	out := make([]uint64, 0, len(r.entries))
	for f := range r.entries {
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Peers returns the set of peer ids with an entry for frame f, sorted
// ascending.
func (r *Ring) Peers(f uint64) []peer.ID {
	entry, ok := r.entries[f]
	if !ok {
		return nil
	}

	out := make([]peer.ID, 0, len(entry.inputs))
	for p := range entry.inputs {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
