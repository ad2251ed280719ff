package sim

import (
	"encoding/binary"
	"fmt"

	"github.com/maxpoletaev/lockstep/fixedpoint"
	"github.com/maxpoletaev/lockstep/peer"
)

// ArenaRules is a small reference Rules implementation: players collect
// pickups, and a claimed pickup is replaced at a random position. It
// exists to exercise every Rules hook, including PRNG draws from
// UpdateGameLogic, with real gameplay rather than a no-op stub.
type ArenaRules struct {
	pickupCount int
	spawnTick   uint32
}

// NewArenaRules creates rules that maintain pickupCount pickups on the
// field. While fewer are alive, one pickup is spawned on each frame whose
// number is a multiple of spawnTick.
func NewArenaRules(pickupCount int, spawnTick uint32) *ArenaRules {
	return &ArenaRules{pickupCount: pickupCount, spawnTick: spawnTick}
}

func (a *ArenaRules) OnInitialize(w *World) {
	for i := 0; i < a.pickupCount; i++ {
		a.spawnPickup(w)
	}
}

func (a *ArenaRules) OnPlayerAction(*World, peer.ID, Buttons) {}

func (a *ArenaRules) OnCollision(w *World, i, j EntityID) {
	ei, _ := w.Entity(i)
	ej, _ := w.Entity(j)

	playerEnt, pickupEnt := classifyPair(ei, ej)
	if playerEnt == nil || pickupEnt == nil {
		return
	}

	for _, pl := range w.players {
		if pl.EntityID == playerEnt.ID {
			pl.Score++
			break
		}
	}

	w.Kill(pickupEnt.ID)
}

func classifyPair(a, b *Entity) (player, pickup *Entity) {
	switch {
	case a.Kind == KindPlayer && b.Kind == KindPickup:
		return a, b
	case b.Kind == KindPlayer && a.Kind == KindPickup:
		return b, a
	default:
		return nil, nil
	}
}

func (a *ArenaRules) UpdateGameLogic(w *World) {
	live := 0
	for _, e := range w.entities {
		if e.Kind == KindPickup && e.Alive {
			live++
		}
	}

	// Every call draws exactly 3 PRNG values regardless of whether a
	// respawn happens, so the draw count per frame stays constant across
	// peers regardless of game state.
	rx := w.Rng().NextInt(0, int32(w.cfg.WorldWidth>>16))
	ry := w.Rng().NextInt(0, int32(w.cfg.WorldHeight>>16))
	_ = w.Rng().Next()

	if live < a.pickupCount && w.Frame()%uint64(a.spawnTick) == 0 {
		at := Vec2{X: fixedpoint.FromInt(rx), Y: fixedpoint.FromInt(ry)}
		w.SpawnEntity(KindPickup, w.cfg.PickupRadius, at)
	}
}

func (a *ArenaRules) spawnPickup(w *World) {
	rx := w.Rng().NextInt(0, int32(w.cfg.WorldWidth>>16))
	ry := w.Rng().NextInt(0, int32(w.cfg.WorldHeight>>16))

	at := Vec2{X: fixedpoint.FromInt(rx), Y: fixedpoint.FromInt(ry)}
	w.SpawnEntity(KindPickup, w.cfg.PickupRadius, at)
}

func (a *ArenaRules) SaveState() ([]byte, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(a.pickupCount))
	binary.LittleEndian.PutUint32(buf[4:8], a.spawnTick)

	return buf, nil
}

func (a *ArenaRules) LoadState(b []byte) error {
	if len(b) != 8 {
		return fmt.Errorf("arena: malformed rules state (%d bytes)", len(b))
	}

	a.pickupCount = int(binary.LittleEndian.Uint32(b[0:4]))
	a.spawnTick = binary.LittleEndian.Uint32(b[4:8])

	return nil
}

func (a *ArenaRules) ChecksumContribution() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(a.pickupCount))

	return buf
}

var _ Rules = (*ArenaRules)(nil)
