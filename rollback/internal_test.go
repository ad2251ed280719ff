package rollback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/input"
	"github.com/maxpoletaev/lockstep/peer"
	"github.com/maxpoletaev/lockstep/snapshot"
)

func TestConfigNormalizeFillsZeroFields(t *testing.T) {
	got := Config{}.normalize()
	want := DefaultConfig()

	assert.Equal(t, want.MaxRollbackFrames, got.MaxRollbackFrames)
	assert.Equal(t, want.InputDelayFrames, got.InputDelayFrames)
	assert.Equal(t, want.MaxPredictionFrames, got.MaxPredictionFrames)
	assert.Equal(t, want.FrameRate, got.FrameRate)
	assert.Equal(t, want.SnapshotInterval, got.SnapshotInterval)
	assert.Equal(t, want.EvictionMargin, got.EvictionMargin)

	// SyncTestInterval's zero is a legitimate "disabled" value, not an
	// unset one, so normalize leaves it alone.
	assert.Zero(t, got.SyncTestInterval)
}

func TestConfigNormalizePreservesExplicitValues(t *testing.T) {
	c := Config{MaxRollbackFrames: 16, SyncTestInterval: 30}.normalize()

	assert.Equal(t, 16, c.MaxRollbackFrames)
	assert.Equal(t, 30, c.SyncTestInterval)
}

// stubHarness is a minimal Harness for exercising rollbackTo in isolation,
// without driving a full sim.World.
type stubHarness struct {
	loaded   []byte
	loadErr  error
	advances int
	checksum uint32
}

func (h *stubHarness) SaveState() ([]byte, error) { return []byte("state"), nil }

func (h *stubHarness) LoadState(b []byte) error {
	h.loaded = b
	return h.loadErr
}

func (h *stubHarness) Advance(map[peer.ID]input.Input) error {
	h.advances++
	return nil
}

func (h *stubHarness) Checksum() uint32 { return h.checksum }

func TestRollbackToReportsMissWhenNoSnapshotCovers(t *testing.T) {
	h := &stubHarness{}
	ctrl := New(DefaultConfig(), nil, nil, nil, nil)
	require.NoError(t, ctrl.Initialize(h, "alice"))

	// currentFrame is well past frame 0, and the snapshot ring has just
	// been reset empty, so nothing covers a rollback target of 50 —
	// forced directly rather than driving dozens of ticks to naturally
	// evict frame 0's snapshot.
	ctrl.currentFrame = 100
	ctrl.snapshots = snapshot.NewRing(4)

	err := ctrl.rollbackTo(50)
	require.Error(t, err)

	var miss *RollbackMissError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, uint64(50), miss.TargetFrame)
}

func TestStateCorruptErrorUnwraps(t *testing.T) {
	inner := assert.AnError
	err := &StateCorruptError{Err: inner}

	assert.ErrorIs(t, err, inner)
}

func TestCallbackErrorUnwraps(t *testing.T) {
	inner := assert.AnError
	err := &CallbackError{Frame: 7, Err: inner}

	assert.ErrorIs(t, err, inner)
}
