package sim

import "github.com/maxpoletaev/lockstep/peer"

// Rules is an explicit game-hooks interface rather than an inheritance
// hierarchy of overridden methods. The rollback controller never sees this
// interface — only World, which implements
// the four-callback Harness contract the controller is wired against.
// Any rules hook must itself be order-deterministic: World always invokes
// hooks for entities/players in ascending id order.
type Rules interface {
	// OnInitialize is called once, after player entities are created, for
	// setup that depends on the initial world (e.g. spawning starting
	// pickups).
	OnInitialize(w *World)

	// OnPlayerAction is called once per player per Advance, after the
	// harness has set that player's velocity from their decoded input.
	OnPlayerAction(w *World, p peer.ID, buttons Buttons)

	// OnCollision is called for every overlapping entity pair, i < j by
	// id, detected during Advance's collision pass.
	OnCollision(w *World, i, j EntityID)

	// UpdateGameLogic runs once per Advance after collision detection,
	// before dead entities are removed. Used for things like periodic
	// spawns that depend on PRNG draws.
	UpdateGameLogic(w *World)

	// SaveState returns an opaque, self-contained blob of any
	// rules-specific state (e.g. spawn timers) to be folded into the
	// World's own save blob. May return nil.
	SaveState() ([]byte, error)

	// LoadState restores rules-specific state from a blob previously
	// returned by SaveState.
	LoadState(blob []byte) error

	// ChecksumContribution folds any rules-specific state into the
	// running World checksum. May return nil.
	ChecksumContribution() []byte
}

// Buttons is the fixed-size decoded representation of a player-action
// input: a fixed-size struct of button bits suffices for player-action
// games. Encode/Decode convert to/from the opaque input.Input wire bytes.
type Buttons struct {
	Up, Down, Left, Right bool
	Action                bool
}

const (
	buttonUp = 1 << iota
	buttonDown
	buttonLeft
	buttonRight
	buttonAction
)

// Encode packs Buttons into a single-byte input payload.
func (b Buttons) Encode() []byte {
	var v uint8

	if b.Up {
		v |= buttonUp
	}
	if b.Down {
		v |= buttonDown
	}
	if b.Left {
		v |= buttonLeft
	}
	if b.Right {
		v |= buttonRight
	}
	if b.Action {
		v |= buttonAction
	}

	return []byte{v}
}

// DecodeButtons unpacks a single-byte input payload into Buttons. An empty
// payload (a null input) decodes to the zero value: no buttons held.
func DecodeButtons(payload []byte) Buttons {
	if len(payload) == 0 {
		return Buttons{}
	}

	v := payload[0]

	return Buttons{
		Up:     v&buttonUp != 0,
		Down:   v&buttonDown != 0,
		Left:   v&buttonLeft != 0,
		Right:  v&buttonRight != 0,
		Action: v&buttonAction != 0,
	}
}

// NopRules is a Rules implementation that does nothing, useful for tests
// and harnesses that only care about movement/collision physics.
type NopRules struct{}

func (NopRules) OnInitialize(*World)                    {}
func (NopRules) OnPlayerAction(*World, peer.ID, Buttons) {}
func (NopRules) OnCollision(*World, EntityID, EntityID)  {}
func (NopRules) UpdateGameLogic(*World)                  {}
func (NopRules) SaveState() ([]byte, error)              { return nil, nil }
func (NopRules) LoadState([]byte) error                  { return nil }
func (NopRules) ChecksumContribution() []byte            { return nil }

var _ Rules = NopRules{}
