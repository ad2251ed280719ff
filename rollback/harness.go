package rollback

import (
	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/render"
)

// Harness is the four-callback contract: the controller never touches
// simulation state directly, only through these methods. sim.World
// satisfies this interface by having the matching method set; nothing in
// this package imports sim.
type Harness interface {
	SaveState() ([]byte, error)
	LoadState(blob []byte) error
	Advance(inputs map[peer.ID]input.Input) error
	Checksum() uint32
}

// Renderable is an optional extension a Harness may implement to expose a
// presentation-ready view of its current state. Controller.GetRenderState
// type-asserts for it and returns the zero render.State if absent.
type Renderable interface {
	RenderState() render.State
}
