// Package mathutil provides small numeric helpers shared by the scoring paths.
package mathutil

import (
	"math"
	"sort"
)

// CalcMeanStd calculates the mean and standard deviation of a slice of float32 values.
// Returns (0, 1) for empty slices to avoid division by zero in normalization.
func CalcMeanStd(scores []float32) (mean, std float32) {
	if len(scores) == 0 {
		return 0, 1 // Avoid division by zero
	}

	// Calculate mean
	var sum float32
	for _, s := range scores {
		sum += s
	}
	mean = sum / float32(len(scores))

	// Calculate standard deviation
	var variance float32
	for _, s := range scores {
		diff := s - mean
		variance += diff * diff
	}
	variance /= float32(len(scores))
	std = float32(math.Sqrt(float64(variance)))

	// Avoid division by zero in normalization
	if std == 0 {
		std = 1
	}

	return mean, std
}

// Sigmoid applies the sigmoid function to a float32 value.
// sigmoid(z) = 1 / (1 + e^(-z))
func Sigmoid(z float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-z))))
}

// ClampInt clamps an integer value to a range [min, max].
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampLimit validates a pagination limit, applying default and max constraints.
// If limit <= 0, returns defaultVal. If limit > maxVal, returns maxVal.
func ClampLimit(limit, defaultVal, maxVal int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > maxVal {
		return maxVal
	}
	return limit
}

// Clamp clamps a float64 value to a range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector is empty, zero-length in norm, or when the
// dimensions disagree; callers treat that as "no similarity signal".
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. The input slice is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
