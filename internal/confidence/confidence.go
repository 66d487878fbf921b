// Package confidence is the single path from raw evidence strength to the
// unified 0-100 confidence scale. Every analytical component routes its
// confidence values through these mappings so they stay comparable; raw
// scales (importance 1-10, frequency 0-1, sample counts) are never compared
// to confidence directly.
package confidence

// LowSampleCeiling is the maximum confidence a result may carry when its
// contributing sample is below the configured minimum.
const LowSampleCeiling = 40.0

const maxScale = 100.0

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxScale {
		return maxScale
	}
	return v
}

// FromExcerptCount maps the number of corroborating source excerpts onto the
// confidence scale. Zero evidence means zero confidence; additional excerpts
// add less each time.
func FromExcerptCount(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 55
	case n == 2:
		return 70
	case n == 3:
		return 80
	case n == 4:
		return 88
	default:
		return 95
	}
}

// FromMatchExactness maps a 0-1 rule/pattern match exactness onto the scale.
// An exact match never reaches 100: extraction certainty is not proof.
func FromMatchExactness(exactness float64) float64 {
	if exactness <= 0 {
		return 0
	}
	if exactness >= 1 {
		return 95
	}
	return clamp(30 + 65*exactness)
}

// FromSampleSize maps a corpus sample size onto the scale. Below the
// configured minimum the result is capped at LowSampleCeiling; above it,
// confidence grows toward 95 as the sample grows.
func FromSampleSize(n, minimum int) float64 {
	if n <= 0 {
		return 0
	}
	if minimum < 1 {
		minimum = 1
	}
	if n < minimum {
		return clamp(LowSampleCeiling * float64(n) / float64(minimum))
	}
	return clamp(LowSampleCeiling + 55*(1-float64(minimum)/float64(n)))
}

// FromProfileCompleteness maps how many of the profile fields a criterion
// needs were actually present.
func FromProfileCompleteness(present, required int) float64 {
	if required <= 0 {
		return 95
	}
	if present < 0 {
		present = 0
	}
	if present > required {
		present = required
	}
	return clamp(95 * float64(present) / float64(required))
}

// Combine averages already-normalized confidence values into one. Inputs
// must themselves come from this package.
func Combine(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += clamp(v)
	}
	return clamp(sum / float64(len(values)))
}

// ApplyInferencePenalty discounts a confidence value for judgments that rest
// on inference rather than explicit evidence. Strictly reduces any positive
// value, so a deep extraction pass always reports lower confidence than the
// basic pass on the same text.
func ApplyInferencePenalty(v float64) float64 {
	return clamp(v * 0.85)
}

// Cap bounds a confidence value by a ceiling.
func Cap(v, ceiling float64) float64 {
	if v > ceiling {
		return clamp(ceiling)
	}
	return clamp(v)
}
