package sim

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/prng"
)

// ErrStateCorrupt is returned by LoadState when the blob cannot be decoded
// or fails structural validation.
var ErrStateCorrupt = fmt.Errorf("sim: state corrupt")

// blob is the wire shape of a World snapshot. cbor.Marshal/Unmarshal gives
// us an opaque, self-contained, deep-copied value for free: decoding a
// blob allocates entirely new maps/slices, so a live World can never
// alias a saved one.
type blob struct {
	Frame        uint64
	NextEntityID EntityID
	Rng          prng.State
	Entities     []Entity
	Positions    map[EntityID]Vec2
	Velocity     map[EntityID]Vec2
	Players      map[peer.ID]*Player
	PlayerOrder  []peer.ID
	RulesState   []byte
}

// SaveState captures frame, next_entity_id, PRNG state, entity table,
// player table, position table, velocity table, and any rules-specific
// state
func (w *World) SaveState() ([]byte, error) {
	entities := make([]Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, *e)
	}

	rulesState, err := w.rules.SaveState()
	if err != nil {
		return nil, fmt.Errorf("sim: rules save state: %w", err)
	}

	b := blob{
		Frame:        w.frame,
		NextEntityID: w.nextEntityID,
		Rng:          w.rng.Save(),
		Entities:     entities,
		Positions:    w.positions,
		Velocity:     w.velocity,
		Players:      w.players,
		PlayerOrder:  w.playerOrder,
		RulesState:   rulesState,
	}

	out, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("sim: marshal state: %w", err)
	}

	return out, nil
}

// LoadState replaces every observable attribute of w with a bit-identical
// copy of what was captured by a prior SaveState call. After LoadState,
// Advance with the same historical inputs reproduces the original run
// exactly
func (w *World) LoadState(data []byte) error {
	var b blob

	if err := cbor.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	if b.Positions == nil || b.Velocity == nil || b.Players == nil {
		return fmt.Errorf("%w: missing required table", ErrStateCorrupt)
	}

	entities := make(map[EntityID]*Entity, len(b.Entities))
	for i := range b.Entities {
		e := b.Entities[i]
		entities[e.ID] = &e
	}

	w.frame = b.Frame
	w.nextEntityID = b.NextEntityID
	w.rng.Load(b.Rng)
	w.entities = entities
	w.positions = b.Positions
	w.velocity = b.Velocity
	w.players = b.Players
	w.playerOrder = b.PlayerOrder

	if err := w.rules.LoadState(b.RulesState); err != nil {
		return fmt.Errorf("%w: rules: %v", ErrStateCorrupt, err)
	}

	return nil
}
