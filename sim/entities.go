package sim

import "github.com/maxpoletaev/lockstep/fixedpoint"

// EntityID is a stable integer handle for an entity, used instead of
// cyclic player<->entity object references: the player table maps peer id
// to EntityID, and every other table is indexed by EntityID. No cycles.
type EntityID uint32

// EntityKind is a closed set of entity kinds — a tagged variant over known
// kinds, not an open bag of arbitrary fields, so Checksum can fold exactly
// the fields that participate in simulation.
type EntityKind uint8

const (
	KindPlayer EntityKind = iota
	KindPickup
	KindProjectile
)

// Entity is the kind/liveness/shape side-table entry. Position and
// velocity live in their own tables (positionTable, velocityTable) so the
// harness can iterate "all entities with a position" without touching
// kind-specific state.
type Entity struct {
	ID     EntityID
	Kind   EntityKind
	Alive  bool
	Radius fixedpoint.Fixed
}

// Vec2 is a fixed-point 2D vector: positions and velocities both use it.
type Vec2 struct {
	X, Y fixedpoint.Fixed
}

// Player is the per-peer player-table entry (data model).
type Player struct {
	EntityID EntityID
	Score    int32
	Lives    int32
}
