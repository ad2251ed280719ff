package rollback

import "github.com/maxpoletaev/lockstep/peer"

// Peer is one participant's entry in the controller's peer table: id,
// local flag, input delay, last confirmed frame.
type Peer struct {
	ID                 peer.ID
	Local              bool
	InputDelay         int
	LastConfirmedFrame uint64
}
