package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/transport"
)

func newTCPPair(t *testing.T) (a, b *transport.TCPAdapter) {
	t.Helper()

	connA, connB := net.Pipe()

	a = transport.NewTCPAdapter(nil)
	b = transport.NewTCPAdapter(nil)

	a.AddConn("b", connA)
	b.AddConn("a", connB)

	return a, b
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatal("condition never became true")
}

func TestTCPAdapterCoalescesInputSends(t *testing.T) {
	a, b := newTCPPair(t)
	defer a.Close()
	defer b.Close()

	cb := &recordingCallbacks{}
	b.SetCallbacks(cb)

	for i := uint32(0); i < 4; i++ {
		require.NoError(t, a.SendInput("b", i, []byte{byte(i)}))
	}

	// Fewer than inputBatchSize frames: nothing should have crossed the
	// wire yet.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, cb.inputs)

	require.NoError(t, a.SendInput("b", 4, []byte{4}))

	waitFor(t, func() bool { return len(cb.inputs) == 5 })

	for i, frame := range cb.inputs {
		assert.Equal(t, uint32(i), frame)
	}
}

func TestTCPAdapterFlushesPartialBatchOnClose(t *testing.T) {
	a, b := newTCPPair(t)
	defer b.Close()

	cb := &recordingCallbacks{}
	b.SetCallbacks(cb)

	require.NoError(t, a.SendInput("b", 0, []byte{1}))
	require.NoError(t, a.SendInput("b", 1, []byte{2}))

	require.NoError(t, a.Close())

	waitFor(t, func() bool { return len(cb.inputs) == 2 })
}

func TestTCPAdapterFlushesBatchOnFrameGap(t *testing.T) {
	a, b := newTCPPair(t)
	defer a.Close()
	defer b.Close()

	cb := &recordingCallbacks{}
	b.SetCallbacks(cb)

	// Frames 10, 11 buffer together; a local player releasing all input
	// then skips 12 and 13 entirely, so 14 must flush 10-11 as their own
	// batch rather than be folded in as if it were frame 12.
	require.NoError(t, a.SendInput("b", 10, []byte{10}))
	require.NoError(t, a.SendInput("b", 11, []byte{11}))
	require.NoError(t, a.SendInput("b", 14, []byte{14}))

	waitFor(t, func() bool { return len(cb.inputs) == 2 })

	assert.Equal(t, []uint32{10, 11}, cb.inputs)
}

func TestTCPAdapterPingRoundTrip(t *testing.T) {
	a, b := newTCPPair(t)
	defer a.Close()
	defer b.Close()

	cbA := &recordingCallbacks{}
	a.SetCallbacks(cbA)
	b.SetCallbacks(&recordingCallbacks{})

	require.NoError(t, a.SendPing("b"))

	waitFor(t, func() bool { return len(cbA.pongs) == 1 })
	assert.GreaterOrEqual(t, cbA.pongs[0], 0.0)
}
