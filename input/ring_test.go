package input_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/peer"
)

func TestGetFallsBackToPredictionThenNull(t *testing.T) {
	r := input.NewRing()

	// No actual, no prediction yet -> Null.
	assert.True(t, r.Get(10, "p1").IsNull())

	r.Add(5, "p1", input.New([]byte{1}))

	// Prediction has been set by frame 5's add; frame 10 has no actual,
	// falls back to the prediction.
	got := r.Get(10, "p1")
	assert.True(t, got.Equal(input.New([]byte{1})))

	// Exact frame returns the actual.
	got = r.Get(5, "p1")
	assert.True(t, got.Equal(input.New([]byte{1})))
}

func TestAddReportsChange(t *testing.T) {
	r := input.NewRing()

	changed := r.Add(1, "p1", input.New([]byte{9}))
	assert.True(t, changed)

	changed = r.Add(1, "p1", input.New([]byte{9}))
	assert.False(t, changed, "re-adding an identical value is not a change")

	changed = r.Add(1, "p1", input.New([]byte{8}))
	assert.True(t, changed)
}

func TestEvictBefore(t *testing.T) {
	r := input.NewRing()

	for f := uint64(0); f < 10; f++ {
		r.Add(f, "p1", input.New([]byte{byte(f)}))
	}

	r.EvictBefore(5)

	_, ok := r.Actual(4, "p1")
	assert.False(t, ok)

	_, ok = r.Actual(5, "p1")
	assert.True(t, ok)
}

func TestPeersSortedAscending(t *testing.T) {
	r := input.NewRing()

	r.Add(1, "bb", input.New([]byte{1}))
	r.Add(1, "aa", input.New([]byte{2}))
	r.Add(1, "cc", input.New([]byte{3}))

	require.Equal(t, []peer.ID{"aa", "bb", "cc"}, r.Peers(1))
}

func TestUsedLogDetectsMismatch(t *testing.T) {
	log := input.NewUsedLog()

	log.Record(10, "p2", input.Null) // predicted null at simulation time

	actual := input.New([]byte{1}) // arrives later, non-null

	used, ok := log.UsedFor(10, "p2")
	require.True(t, ok)
	assert.False(t, used.Equal(actual), "mismatch should be detected")
}
