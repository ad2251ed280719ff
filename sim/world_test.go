package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/sim"
)

func newTestWorld() *sim.World {
	w := sim.New(sim.DefaultConfig(), sim.NopRules{}, 42)
	w.AddPlayer("aa", sim.Vec2{X: 100 << 16, Y: 300 << 16})
	w.AddPlayer("bb", sim.Vec2{X: 200 << 16, Y: 300 << 16})
	w.Init()

	return w
}

func rightInput() input.Input {
	return input.New(sim.Buttons{Right: true}.Encode())
}

func TestDeterminismSameSeedSameSequence(t *testing.T) {
	w1 := newTestWorld()
	w2 := newTestWorld()

	for i := 0; i < 60; i++ {
		ins := map[peer.ID]input.Input{"aa": rightInput()}

		require.NoError(t, w1.Advance(ins))
		require.NoError(t, w2.Advance(ins))

		assert.Equal(t, w1.Checksum(), w2.Checksum(), "frame %d", i)
	}
}

func TestMovementIncreasesX(t *testing.T) {
	w := newTestWorld()

	before, _ := w.Player("aa")
	beforePos, _ := w.Position(before.EntityID)

	for i := 0; i < 60; i++ {
		require.NoError(t, w.Advance(map[peer.ID]input.Input{"aa": rightInput()}))
	}

	after, _ := w.Player("aa")
	afterPos, _ := w.Position(after.EntityID)

	assert.Greater(t, afterPos.X, beforePos.X)
}

func TestSaveLoadIdentity(t *testing.T) {
	w := newTestWorld()

	for i := 0; i < 20; i++ {
		require.NoError(t, w.Advance(map[peer.ID]input.Input{"aa": rightInput()}))
	}

	blob, err := w.SaveState()
	require.NoError(t, err)

	// Mutate live state after the save.
	require.NoError(t, w.Advance(map[peer.ID]input.Input{"aa": rightInput()}))

	restored := sim.New(sim.DefaultConfig(), sim.NopRules{}, 1)
	require.NoError(t, restored.LoadState(blob))

	// Catch the restored world up to the one extra frame w has advanced.
	require.NoError(t, restored.Advance(map[peer.ID]input.Input{"aa": rightInput()}))

	// Both should now replay identically for the same inputs.
	for i := 0; i < 10; i++ {
		ins := map[peer.ID]input.Input{"aa": rightInput()}

		require.NoError(t, w.Advance(ins))
		require.NoError(t, restored.Advance(ins))
	}

	assert.Equal(t, w.Checksum(), restored.Checksum())
}

func TestLoadStateRejectsMalformedBlob(t *testing.T) {
	w := newTestWorld()

	err := w.LoadState([]byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrStateCorrupt)
}

func TestDiagonalNormalization(t *testing.T) {
	w := newTestWorld()

	pl, _ := w.Player("aa")
	before, _ := w.Position(pl.EntityID)

	diag := input.New(sim.Buttons{Right: true, Down: true}.Encode())

	for i := 0; i < 10; i++ {
		require.NoError(t, w.Advance(map[peer.ID]input.Input{"aa": diag}))
	}

	after, _ := w.Position(pl.EntityID)

	dx := after.X.ToFloat() - before.X.ToFloat()
	dy := after.Y.ToFloat() - before.Y.ToFloat()

	assert.Greater(t, dx, 0.0)
	assert.Greater(t, dy, 0.0)

	// Normalized: 10 frames at Speed (2.5) cover a straight-line distance
	// of 25 units, so the squared distance is 625 within a unit.
	assert.Equal(t, dx, dy)
	assert.InDelta(t, 625.0, dx*dx+dy*dy, 1.0)
}

func TestBoundsClampZeroesVelocity(t *testing.T) {
	w := sim.New(sim.DefaultConfig(), sim.NopRules{}, 1)
	w.AddPlayer("aa", sim.Vec2{X: 0, Y: 0})
	w.Init()

	left := input.New(sim.Buttons{Left: true}.Encode())

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Advance(map[peer.ID]input.Input{"aa": left}))
	}

	pl, _ := w.Player("aa")
	pos, _ := w.Position(pl.EntityID)

	assert.Equal(t, sim.Vec2{}.X, pos.X, "clamped to left wall")
}

func TestArenaRulesDeterministicAcrossIdenticalRuns(t *testing.T) {
	w := sim.New(sim.DefaultConfig(), sim.NewArenaRules(1, 30), 7)
	w.AddPlayer("aa", sim.Vec2{X: 100 << 16, Y: 100 << 16})
	w.Init()

	// Run a while; the pickup is placed deterministically by the seeded
	// PRNG, this just checks the hook wiring doesn't panic and state
	// stays internally consistent (score never negative, checksum stable
	// across two identically-seeded runs).
	w2 := sim.New(sim.DefaultConfig(), sim.NewArenaRules(1, 30), 7)
	w2.AddPlayer("aa", sim.Vec2{X: 100 << 16, Y: 100 << 16})
	w2.Init()

	for i := 0; i < 120; i++ {
		ins := map[peer.ID]input.Input{"aa": rightInput()}
		require.NoError(t, w.Advance(ins))
		require.NoError(t, w2.Advance(ins))
		require.Equal(t, w.Checksum(), w2.Checksum())
	}

	pl, _ := w.Player("aa")
	assert.GreaterOrEqual(t, pl.Score, int32(0))
}
