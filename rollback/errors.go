package rollback

import (
	"fmt"

	"github.com/maxpoletaev/lockstep/peer"
)

// The error kinds split into two groups. StaleInput/FutureInput/PeerLost
// are handled internally and never returned from Tick: a stale input is
// logged, dropped and reported through StaleInputDelegate, a future input
// stays queued, a lost peer is removed and reported through
// PeerLostDelegate. RollbackMiss,
// StateCorrupt, and a callback's ArithmeticError are fatal and surface
// through FatalDelegate and FatalErr. AlreadyInitializedError is returned
// directly from Initialize.

// AlreadyInitializedError is returned by Initialize if it is called more
// than once on the same Controller.
type AlreadyInitializedError struct{}

func (*AlreadyInitializedError) Error() string {
	return "rollback: controller already initialized"
}

// RollbackMissError means the rollback target precedes every retained
// snapshot: the session cannot recover, and never silently does.
type RollbackMissError struct {
	TargetFrame uint64
	OldestKept  uint64
}

func (e *RollbackMissError) Error() string {
	return fmt.Sprintf("rollback: miss at target frame %d, oldest retained snapshot is %d",
		e.TargetFrame, e.OldestKept)
}

// StateCorruptError wraps a failure from Harness.LoadState on a malformed
// blob.
type StateCorruptError struct {
	Err error
}

func (e *StateCorruptError) Error() string {
	return fmt.Sprintf("rollback: state corrupt: %v", e.Err)
}

func (e *StateCorruptError) Unwrap() error {
	return e.Err
}

// CallbackError wraps a non-nil error returned by Harness.Advance: an
// ArithmeticError surfaced by the callback is treated as callback
// failure and is fatal to the session.
type CallbackError struct {
	Frame uint64
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("rollback: advance callback failed at frame %d: %v", e.Frame, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// InvalidStateError is returned when a consumer API call isn't valid for
// the controller's current lifecycle state (e.g. Start on an already
// running or fatal controller).
type InvalidStateError struct {
	Want, Got State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("rollback: invalid state: want %s, got %s", e.Want, e.Got)
}

// StaleInputEvent describes an input dropped for arriving too late to
// ever be applied (frame < current - max_rollback).
type StaleInputEvent struct {
	Peer  peer.ID
	Frame uint64
}

// DesyncEvent reports that a peer's sync-test checksum disagreed with the
// local snapshot at the same frame. Non-fatal: reporting only.
type DesyncEvent struct {
	Peer   peer.ID
	Frame  uint64
	Local  uint32
	Theirs uint32
}
