package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maxpoletaev/lockstep/internal/ring"
)

func TestPushAtTrunc(t *testing.T) {
	b := ring.New[int](4)

	for i := 0; i < 10; i++ {
		b.PushBack(i)
	}

	assert.Equal(t, 10, b.Len())
	assert.Equal(t, 0, b.At(0))
	assert.Equal(t, 9, b.At(9))

	b.TruncFront(5)
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 5, b.At(0))

	b.Set(0, 500)
	assert.Equal(t, 500, b.At(0))
}

func TestCompactsAfterTrunc(t *testing.T) {
	b := ring.New[int](2)

	truncated := 0
	for i := 0; i < 100; i++ {
		b.PushBack(i)
		if i%3 == 0 {
			b.TruncFront(1)
			truncated++
		}
	}

	assert.Equal(t, 100-truncated, b.Len())
	assert.Equal(t, truncated, b.At(0))
}
