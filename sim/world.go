// Package sim implements the deterministic simulation harness: the
// fixed-tick entity/player world describes, exposed to the
// rollback controller through the four-callback Harness contract
// (save/load/advance/checksum). Generalized from a concrete CPU/PPU pair
// into typed entity/player side-tables driven through callback-based game
// hooks instead.
package sim

import (
	"sort"

	"github.com/maxpoletaev/lockstep/fixedpoint"
	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/prng"
	"github.com/maxpoletaev/lockstep/render"
)

// Config tunes the physics constants every World uses: speed normalized
// via fixed-point sqrt for diagonal movement, multiplicative friction,
// hard wall bounds.
type Config struct {
	// Speed is the per-tick movement speed, in Q16.16 world units.
	Speed fixedpoint.Fixed

	// Friction is multiplied into velocity every tick (e.g. 0.85 in
	// Q16.16 for brisk deceleration once input stops).
	Friction fixedpoint.Fixed

	// WorldWidth/WorldHeight bound entity positions; on clamp the
	// corresponding velocity axis is zeroed.
	WorldWidth, WorldHeight fixedpoint.Fixed

	// PlayerRadius/PickupRadius size the collision overlap checks.
	PlayerRadius, PickupRadius fixedpoint.Fixed
}

// DefaultConfig returns reasonable constants for a top-down arena.
func DefaultConfig() Config {
	return Config{
		Speed:        fixedpoint.FromFloat(2.5),
		Friction:     fixedpoint.FromFloat(0.85),
		WorldWidth:   fixedpoint.FromInt(640),
		WorldHeight:  fixedpoint.FromInt(480),
		PlayerRadius: fixedpoint.FromInt(8),
		PickupRadius: fixedpoint.FromInt(4),
	}
}

// World is the harness: entity table, position/velocity tables, player
// table, PRNG, and frame counter, driven through Advance/SaveState/
// LoadState/Checksum by the rollback controller.
type World struct {
	cfg   Config
	rules Rules

	frame        uint64
	nextEntityID EntityID
	rng          *prng.PRNG

	entities  map[EntityID]*Entity
	positions map[EntityID]Vec2
	velocity  map[EntityID]Vec2
	players   map[peer.ID]*Player

	// playerOrder preserves the order peers were added in, purely so
	// AddPlayer is idempotent-order-free for callers; all simulation
	// iteration instead sorts peer.ID directly (ascending) everywhere.
	playerOrder []peer.ID
}

// New creates an empty World. Call AddPlayer for each participant, then
// Init, before the rollback controller starts driving it.
func New(cfg Config, rules Rules, seed uint32) *World {
	if rules == nil {
		rules = NopRules{}
	}

	return &World{
		cfg:       cfg,
		rules:     rules,
		rng:       prng.New(seed),
		entities:  make(map[EntityID]*Entity),
		positions: make(map[EntityID]Vec2),
		velocity:  make(map[EntityID]Vec2),
		players:   make(map[peer.ID]*Player),
	}
}

// AddPlayer creates a player entity for p at the given starting position.
// This happens once at session initialization for every participant.
func (w *World) AddPlayer(p peer.ID, start Vec2) EntityID {
	id := w.allocEntity(KindPlayer, w.cfg.PlayerRadius)
	w.positions[id] = start
	w.velocity[id] = Vec2{}
	w.players[p] = &Player{EntityID: id, Lives: 3}
	w.playerOrder = append(w.playerOrder, p)

	return id
}

// Init runs one-time setup after all players are added. Must be called
// exactly once, before the first Advance.
func (w *World) Init() {
	w.rules.OnInitialize(w)
}

// Frame returns the current frame counter.
func (w *World) Frame() uint64 {
	return w.frame
}

// Rng exposes the deterministic PRNG to Rules hooks. Rules must never draw
// randomness from any other source, or resimulation will diverge.
func (w *World) Rng() *prng.PRNG {
	return w.rng
}

// SpawnEntity creates a new non-player entity, for use by Rules hooks.
func (w *World) SpawnEntity(kind EntityKind, radius fixedpoint.Fixed, at Vec2) EntityID {
	id := w.allocEntity(kind, radius)
	w.positions[id] = at
	w.velocity[id] = Vec2{}

	return id
}

// Kill marks an entity dead; it is removed at the end of the current
// Advance.
func (w *World) Kill(id EntityID) {
	if e, ok := w.entities[id]; ok {
		e.Alive = false
	}
}

// Position returns an entity's current position.
func (w *World) Position(id EntityID) (Vec2, bool) {
	p, ok := w.positions[id]
	return p, ok
}

// Entity returns an entity's metadata.
func (w *World) Entity(id EntityID) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Player returns a peer's player-table entry.
func (w *World) Player(p peer.ID) (*Player, bool) {
	pl, ok := w.players[p]
	return pl, ok
}

func (w *World) allocEntity(kind EntityKind, radius fixedpoint.Fixed) EntityID {
	id := w.nextEntityID
	w.nextEntityID++

	w.entities[id] = &Entity{ID: id, Kind: kind, Alive: true, Radius: radius}

	return id
}

// Advance runs one deterministic tick: input application, integration,
// collision detection, game rules, and lifecycle cleanup, always in that
// order. inputs maps peer id to that peer's input for this frame; an
// absent peer is treated as having no buttons held.
//
// Rules hooks that hit a fixed-point division by zero are expected to
// panic with *fixedpoint.ArithmeticError rather than swallow it; Advance
// recovers that specific panic and returns it as an error, so the rollback
// controller can treat a failing callback as fatal. Any other panic
// propagates, since it indicates a genuine bug rather than an anticipated
// failure mode.
func (w *World) Advance(inputs map[peer.ID]input.Input) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*fixedpoint.ArithmeticError); ok {
				err = ae
				return
			}
			panic(r)
		}
	}()

	w.applyPlayerInputs(inputs)
	w.integrate()
	w.detectCollisions()
	w.rules.UpdateGameLogic(w)
	w.removeDead()
	w.frame++

	return nil
}

// applyPlayerInputs walks players in ascending peer-id order, setting
// velocity from input and normalizing diagonal movement to Speed via
// fixed-point sqrt.
func (w *World) applyPlayerInputs(inputs map[peer.ID]input.Input) {
	peers := make([]peer.ID, 0, len(w.players))
	for p := range w.players {
		peers = append(peers, p)
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	for _, p := range peers {
		pl := w.players[p]

		var payload []byte
		if in, ok := inputs[p]; ok {
			payload = in.Bytes()
		}

		buttons := DecodeButtons(payload)

		var dx, dy int32
		if buttons.Left {
			dx--
		}
		if buttons.Right {
			dx++
		}
		if buttons.Up {
			dy--
		}
		if buttons.Down {
			dy++
		}

		vx := fixedpoint.FromInt(dx)
		vy := fixedpoint.FromInt(dy)

		if dx != 0 && dy != 0 {
			// Diagonal: normalize the (1,1)-ish vector to length Speed
			// using fixed-point sqrt.
			magSq := fixedpoint.Add(fixedpoint.Mul(vx, vx), fixedpoint.Mul(vy, vy))
			mag := fixedpoint.Sqrt(magSq)

			if mag != 0 {
				nx, _ := fixedpoint.Div(vx, mag)
				ny, _ := fixedpoint.Div(vy, mag)
				vx = fixedpoint.Mul(nx, w.cfg.Speed)
				vy = fixedpoint.Mul(ny, w.cfg.Speed)
			}
		} else {
			vx = fixedpoint.Mul(vx, w.cfg.Speed)
			vy = fixedpoint.Mul(vy, w.cfg.Speed)
		}

		w.velocity[pl.EntityID] = Vec2{X: vx, Y: vy}
		w.rules.OnPlayerAction(w, p, buttons)
	}
}

// integrate advances position, applies friction, and clamps to bounds,
// zeroing velocity on the clamped axis.
func (w *World) integrate() {
	ids := w.positionedEntityIDsAscending()

	for _, id := range ids {
		pos := w.positions[id]
		vel := w.velocity[id]

		pos.X = fixedpoint.Add(pos.X, vel.X)
		pos.Y = fixedpoint.Add(pos.Y, vel.Y)

		vel.X = fixedpoint.Mul(vel.X, w.cfg.Friction)
		vel.Y = fixedpoint.Mul(vel.Y, w.cfg.Friction)

		if pos.X < 0 {
			pos.X = 0
			vel.X = 0
		} else if pos.X > w.cfg.WorldWidth {
			pos.X = w.cfg.WorldWidth
			vel.X = 0
		}

		if pos.Y < 0 {
			pos.Y = 0
			vel.Y = 0
		} else if pos.Y > w.cfg.WorldHeight {
			pos.Y = w.cfg.WorldHeight
			vel.Y = 0
		}

		w.positions[id] = pos
		w.velocity[id] = vel
	}
}

// detectCollisions checks every pair (i,j), i<j, ascending by id, with a
// squared-distance-vs-squared-radii-sum overlap test.
func (w *World) detectCollisions() {
	ids := w.positionedEntityIDsAscending()

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]

			ea, eb := w.entities[a], w.entities[b]
			if !ea.Alive || !eb.Alive {
				continue
			}

			pa, pb := w.positions[a], w.positions[b]

			dx := fixedpoint.Sub(pa.X, pb.X)
			dy := fixedpoint.Sub(pa.Y, pb.Y)
			distSq := fixedpoint.Add(fixedpoint.Mul(dx, dx), fixedpoint.Mul(dy, dy))

			radiusSum := fixedpoint.Add(ea.Radius, eb.Radius)
			radiusSumSq := fixedpoint.Mul(radiusSum, radiusSum)

			if distSq <= radiusSumSq {
				w.rules.OnCollision(w, a, b)
			}
		}
	}
}

// removeDead destroys, in ascending id order, entities marked dead by the
// end of the tick.
func (w *World) removeDead() {
	ids := make([]EntityID, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if !w.entities[id].Alive {
			delete(w.entities, id)
			delete(w.positions, id)
			delete(w.velocity, id)
		}
	}
}

// RenderState converts the current frame to a float-positioned snapshot
// for a presentation layer. It is the only place fixed-point values cross
// into float64 (the rollback controller's GetRenderState reaches here
// through the Renderable interface).
func (w *World) RenderState() render.State {
	ids := w.positionedEntityIDsAscending()
	entities := make([]render.Entity, 0, len(ids))

	for _, id := range ids {
		e := w.entities[id]
		pos := w.positions[id]

		entities = append(entities, render.Entity{
			ID:    uint32(id),
			Kind:  uint8(e.Kind),
			X:     pos.X.ToFloat(),
			Y:     pos.Y.ToFloat(),
			Alive: e.Alive,
		})
	}

	return render.State{Frame: w.frame, Entities: entities}
}

func (w *World) positionedEntityIDsAscending() []EntityID {
	ids := make([]EntityID, 0, len(w.positions))
	for id := range w.positions {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
