package fixedpoint

// quadrantSamples gives sinQuadrant's resolution: sinQuadrant has
// quadrantSamples+1 entries covering [0, pi/2] inclusive.
const quadrantSamples = 256

// sinQuadrant holds sin(i * (pi/2) / quadrantSamples) in Q16.16, for
// i in [0, quadrantSamples]. Precomputed once and checked in as a literal
// so every participant in a match reads the exact same bits — no platform
// trig function is ever called from simulation code.
var sinQuadrant = [quadrantSamples + 1]int32{
	0, 402, 804, 1206, 1608, 2010, 2412, 2814,
	3215, 3617, 4018, 4420, 4821, 5222, 5622, 6023,
	6423, 6823, 7223, 7623, 8022, 8421, 8819, 9218,
	9616, 10013, 10410, 10807, 11204, 11600, 11995, 12390,
	12785, 13179, 13573, 13966, 14359, 14751, 15142, 15533,
	15923, 16313, 16702, 17091, 17479, 17866, 18253, 18638,
	19024, 19408, 19792, 20175, 20557, 20938, 21319, 21699,
	22078, 22456, 22833, 23210, 23586, 23960, 24334, 24707,
	25079, 25450, 25820, 26189, 26557, 26925, 27291, 27656,
	28020, 28383, 28745, 29105, 29465, 29824, 30181, 30538,
	30893, 31247, 31600, 31952, 32302, 32651, 32999, 33346,
	33692, 34036, 34379, 34721, 35061, 35400, 35738, 36074,
	36409, 36743, 37075, 37406, 37736, 38064, 38390, 38716,
	39039, 39362, 39682, 40002, 40319, 40636, 40950, 41263,
	41575, 41885, 42194, 42501, 42806, 43110, 43412, 43712,
	44011, 44308, 44603, 44897, 45189, 45480, 45768, 46055,
	46340, 46624, 46906, 47186, 47464, 47740, 48015, 48288,
	48558, 48828, 49095, 49360, 49624, 49886, 50146, 50403,
	50660, 50914, 51166, 51416, 51665, 51911, 52155, 52398,
	52639, 52877, 53114, 53348, 53581, 53811, 54040, 54266,
	54491, 54713, 54933, 55152, 55368, 55582, 55794, 56004,
	56212, 56417, 56621, 56822, 57022, 57219, 57414, 57606,
	57797, 57986, 58172, 58356, 58538, 58718, 58895, 59070,
	59243, 59414, 59583, 59749, 59913, 60075, 60235, 60392,
	60547, 60700, 60850, 60998, 61144, 61288, 61429, 61568,
	61705, 61839, 61971, 62100, 62228, 62353, 62475, 62596,
	62714, 62829, 62942, 63053, 63162, 63268, 63371, 63473,
	63571, 63668, 63762, 63854, 63943, 64030, 64115, 64197,
	64276, 64353, 64428, 64501, 64571, 64638, 64703, 64766,
	64826, 64884, 64939, 64992, 65043, 65091, 65136, 65179,
	65220, 65258, 65294, 65327, 65358, 65386, 65412, 65436,
	65457, 65475, 65491, 65505, 65516, 65524, 65531, 65534,
	65536,
}

// HalfPi, Pi and TwoPi are the Q16.16 constants used for angle reduction.
// Pi itself is not representable exactly, so each constant is its real
// value times Scale rounded to the nearest integer; they are not exact
// multiples of one another.
const (
	HalfPi Fixed = 102944 // round(pi/2 * 65536)
	Pi     Fixed = 205887 // round(pi * 65536)
	TwoPi  Fixed = 411775 // round(2*pi * 65536)
)

// sinLookup interpolates sinQuadrant for a reduced angle in [0, HalfPi].
func sinLookup(angle Fixed) Fixed {
	if angle < 0 {
		angle = 0
	}
	if angle > HalfPi {
		angle = HalfPi
	}

	// Position within the table, in Q16.16 "index units".
	pos := Mul(angle, FromInt(quadrantSamples))
	pos, _ = Div(pos, HalfPi)

	idx := int(pos >> 16)
	if idx >= quadrantSamples {
		return Fixed(sinQuadrant[quadrantSamples])
	}

	frac := pos & 0xFFFF
	lo := Fixed(sinQuadrant[idx])
	hi := Fixed(sinQuadrant[idx+1])

	return lo + Mul(hi-lo, Fixed(frac))
}

// reduceAngle folds an arbitrary angle into [0, TwoPi).
func reduceAngle(angle Fixed) Fixed {
	r := angle % TwoPi
	if r < 0 {
		r += TwoPi
	}

	return r
}

// Sin returns sin(angle) in Q16.16, angle itself given in Q16.16 radians.
// The result is bit-identical across every conformant participant: it is
// computed entirely from reduceAngle/sinLookup, never math.Sin.
func Sin(angle Fixed) Fixed {
	r := reduceAngle(angle)

	switch {
	case r <= HalfPi:
		return sinLookup(r)
	case r <= Pi:
		return sinLookup(Pi - r)
	case r <= Pi+HalfPi:
		return -sinLookup(r - Pi)
	default:
		return -sinLookup(TwoPi - r)
	}
}

// Cos returns cos(angle) in Q16.16, via the identity cos(x) = sin(x+pi/2).
func Cos(angle Fixed) Fixed {
	return Sin(angle + HalfPi)
}
