package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/snapshot"
)

func TestWriteAndAt(t *testing.T) {
	r := snapshot.NewRing(9)

	r.Write(5, []byte("five"), 0xAAAA)

	s, ok := r.At(5)
	require.True(t, ok)
	assert.Equal(t, uint64(5), s.Frame)
	assert.Equal(t, []byte("five"), s.State)
}

func TestOverwriteOnWraparound(t *testing.T) {
	r := snapshot.NewRing(3)

	r.Write(0, []byte("a"), 1)
	r.Write(3, []byte("b"), 2) // same slot as frame 0

	_, ok := r.At(0)
	assert.False(t, ok, "frame 0 was overwritten")

	s, ok := r.At(3)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), s.State)
}

func TestNearestAtOrBefore(t *testing.T) {
	r := snapshot.NewRing(9)

	r.Write(0, []byte("f0"), 1)
	r.Write(3, []byte("f3"), 2)
	r.Write(6, []byte("f6"), 3)

	s, ok := r.NearestAtOrBefore(5)
	require.True(t, ok)
	assert.Equal(t, uint64(3), s.Frame)

	s, ok = r.NearestAtOrBefore(6)
	require.True(t, ok)
	assert.Equal(t, uint64(6), s.Frame)

	_, ok = r.NearestAtOrBefore(0)
	assert.True(t, ok)
}

func TestLengthSatisfiesCoverageBound(t *testing.T) {
	length := snapshot.Length(8, 3)
	assert.GreaterOrEqual(t, length, 9)

	length = snapshot.Length(8, 1)
	assert.GreaterOrEqual(t, length, 9)
}
