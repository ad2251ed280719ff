package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/transport"
)

type recordingCallbacks struct {
	inputs    []uint32
	syncTests []uint32
	lostPeers []peer.ID
	pongs     []float64
}

func (r *recordingCallbacks) OnInput(p peer.ID, frame uint32, payload []byte) {
	r.inputs = append(r.inputs, frame)
}

func (r *recordingCallbacks) OnSyncTest(p peer.ID, frame uint32, checksum uint32) {
	r.syncTests = append(r.syncTests, frame)
}

func (r *recordingCallbacks) OnPeerLost(p peer.ID) {
	r.lostPeers = append(r.lostPeers, p)
}

func (r *recordingCallbacks) OnPong(p peer.ID, rttMs float64) {
	r.pongs = append(r.pongs, rttMs)
}

func TestLoopbackDeliversToPeer(t *testing.T) {
	a, b := transport.NewLoopbackPair("a", "b")

	cbA := &recordingCallbacks{}
	cbB := &recordingCallbacks{}

	a.SetCallbacks(cbA)
	b.SetCallbacks(cbB)

	_ = a.SendInput("b", 10, []byte{1})
	require.Len(t, cbB.inputs, 1)
	assert.Equal(t, uint32(10), cbB.inputs[0])

	_ = b.SendSyncTest("a", 20, 0x1234)
	require.Len(t, cbA.syncTests, 1)
	assert.Equal(t, uint32(20), cbA.syncTests[0])

	assert.Empty(t, cbA.lostPeers)
}

func TestLoopbackSendPing(t *testing.T) {
	a, b := transport.NewLoopbackPair("a", "b")

	cbA := &recordingCallbacks{}
	a.SetCallbacks(cbA)
	b.SetCallbacks(&recordingCallbacks{})

	require.NoError(t, a.SendPing("b"))
	require.Len(t, cbA.pongs, 1)
	assert.Zero(t, cbA.pongs[0])
}
