// Package render holds the read-only, float-converted view of simulation
// state handed to a presentation layer. It exists so the rollback
// controller and the simulation harness can share a render type without
// the harness importing the controller's package (or vice versa).
package render

// Entity is one simulation entity with its fixed-point position already
// converted to float64 for display.
type Entity struct {
	ID    uint32
	Kind  uint8
	X, Y  float64
	Alive bool
}

// State is a snapshot of everything a presentation layer needs to draw
// one frame.
type State struct {
	Frame    uint64
	Entities []Entity
}
