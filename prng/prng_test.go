package prng_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maxpoletaev/lockstep/prng"
)

func TestDeterministicForSameSeed(t *testing.T) {
	a := prng.New(42)
	b := prng.New(42)

	for i := 0; i < 1000; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestSaveLoadReproducesSequence(t *testing.T) {
	p := prng.New(7)

	for i := 0; i < 50; i++ {
		p.Next()
	}

	saved := p.Save()

	var before []uint32
	for i := 0; i < 20; i++ {
		before = append(before, p.Next())
	}

	p.Load(saved)

	var after []uint32
	for i := 0; i < 20; i++ {
		after = append(after, p.Next())
	}

	assert.Equal(t, before, after)
}

func TestNextFloatRange(t *testing.T) {
	p := prng.New(1)

	for i := 0; i < 10000; i++ {
		f := p.NextFloat()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestNextIntRange(t *testing.T) {
	p := prng.New(99)

	for i := 0; i < 10000; i++ {
		n := p.NextInt(10, 20)
		assert.GreaterOrEqual(t, n, int32(10))
		assert.Less(t, n, int32(20))
	}
}
