package fixedpoint_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/lockstep/fixedpoint"
)

func TestMulApproximatesFloatMultiply(t *testing.T) {
	cases := []struct{ a, b float64 }{
		{2.5, 4.0},
		{-3.25, 1.5},
		{0.001, 1000.0},
		{123.456, -7.89},
	}

	for _, c := range cases {
		a := fixedpoint.FromFloat(c.a)
		b := fixedpoint.FromFloat(c.b)

		got := fixedpoint.Mul(a, b).ToFloat()
		want := a.ToFloat() * b.ToFloat()

		assert.InDelta(t, want, got, 1.0/32768, "mul(%v,%v)", c.a, c.b)
	}
}

func TestDivByZeroFails(t *testing.T) {
	_, err := fixedpoint.Div(fixedpoint.FromInt(1), 0)
	require.Error(t, err)

	var arithErr *fixedpoint.ArithmeticError
	require.ErrorAs(t, err, &arithErr)
}

func TestDivFloorsTowardNegativeInfinity(t *testing.T) {
	got, err := fixedpoint.Div(-1, 3)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Fixed(-21846), got)

	got, err = fixedpoint.Div(1, 3)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Fixed(21845), got)

	got, err = fixedpoint.Div(-1, -3)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Fixed(21845), got)
}

func TestSqrtOfSquareIsIdentity(t *testing.T) {
	for x := int32(0); x <= 1<<15; x += 977 {
		v := fixedpoint.FromInt(x)
		squared := fixedpoint.Mul(v, v)

		got := fixedpoint.Sqrt(squared)
		assert.InDelta(t, float64(v), float64(got), 2, "sqrt(%d^2)", x)
	}
}

func TestSqrtNegativeIsZero(t *testing.T) {
	assert.Equal(t, fixedpoint.Fixed(0), fixedpoint.Sqrt(-fixedpoint.FromInt(4)))
}

func TestSinCosMatchMathWithinTolerance(t *testing.T) {
	const tolerance = 1.0 / 1000

	for i := 0; i < 360; i += 5 {
		rad := float64(i) * math.Pi / 180
		angle := fixedpoint.FromFloat(rad)

		gotSin := fixedpoint.Sin(angle).ToFloat()
		gotCos := fixedpoint.Cos(angle).ToFloat()

		assert.InDelta(t, math.Sin(rad), gotSin, tolerance, "sin(%d deg)", i)
		assert.InDelta(t, math.Cos(rad), gotCos, tolerance, "cos(%d deg)", i)
	}
}

func TestSinCosDeterministicAcrossCalls(t *testing.T) {
	angle := fixedpoint.FromFloat(1.2345)

	s1, c1 := fixedpoint.Sin(angle), fixedpoint.Cos(angle)
	s2, c2 := fixedpoint.Sin(angle), fixedpoint.Cos(angle)

	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
}
