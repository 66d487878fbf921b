package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromExcerptCount(t *testing.T) {
	assert.Equal(t, 0.0, FromExcerptCount(0))
	assert.Equal(t, 0.0, FromExcerptCount(-3))

	prev := 0.0
	for n := 1; n <= 8; n++ {
		v := FromExcerptCount(n)
		assert.GreaterOrEqual(t, v, prev, "must be monotone at n=%d", n)
		assert.LessOrEqual(t, v, 100.0)
		prev = v
	}
	assert.Equal(t, 95.0, FromExcerptCount(100))
}

func TestFromMatchExactness(t *testing.T) {
	assert.Equal(t, 0.0, FromMatchExactness(0))
	assert.Equal(t, 95.0, FromMatchExactness(1))
	assert.Equal(t, 95.0, FromMatchExactness(2.5)) // clamped input

	prev := 0.0
	for e := 0.1; e < 1.0; e += 0.1 {
		v := FromMatchExactness(e)
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestFromSampleSize(t *testing.T) {
	const minimum = 5

	// Below minimum: capped at the low-sample ceiling.
	for n := 1; n < minimum; n++ {
		assert.LessOrEqual(t, FromSampleSize(n, minimum), LowSampleCeiling)
	}
	assert.Equal(t, 0.0, FromSampleSize(0, minimum))

	// At minimum exactly the ceiling; grows monotonically beyond it.
	assert.Equal(t, LowSampleCeiling, FromSampleSize(minimum, minimum))
	prev := LowSampleCeiling
	for n := minimum + 1; n < 50; n += 3 {
		v := FromSampleSize(n, minimum)
		assert.Greater(t, v, prev)
		assert.LessOrEqual(t, v, 95.0)
		prev = v
	}
}

func TestFromProfileCompleteness(t *testing.T) {
	assert.Equal(t, 95.0, FromProfileCompleteness(3, 0))
	assert.Equal(t, 0.0, FromProfileCompleteness(0, 4))
	assert.Equal(t, 95.0, FromProfileCompleteness(4, 4))
	assert.Equal(t, 95.0, FromProfileCompleteness(9, 4)) // over-complete clamps

	half := FromProfileCompleteness(2, 4)
	full := FromProfileCompleteness(4, 4)
	assert.Greater(t, full, half)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, 0.0, Combine())
	assert.Equal(t, 60.0, Combine(40, 80))
	assert.LessOrEqual(t, Combine(200, 300), 100.0) // out-of-range inputs clamped
}

func TestApplyInferencePenalty(t *testing.T) {
	assert.Equal(t, 0.0, ApplyInferencePenalty(0))

	for _, v := range []float64{10, 42.5, 80, 100} {
		penalized := ApplyInferencePenalty(v)
		assert.Less(t, penalized, v, "penalty must strictly reduce %v", v)
		assert.GreaterOrEqual(t, penalized, 0.0)
	}
}

func TestCap(t *testing.T) {
	assert.Equal(t, LowSampleCeiling, Cap(88, LowSampleCeiling))
	assert.Equal(t, 25.0, Cap(25, LowSampleCeiling))
}
