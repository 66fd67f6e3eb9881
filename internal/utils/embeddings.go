package utils

import (
	"fmt"
	"math"
)

// CosineSimilarity returns the cosine of the angle between two embedding
// vectors. Vectors must be non-empty and of equal dimension. A zero
// magnitude on either side yields 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same dimension")
	}

	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}

	magA := magnitude(a)
	magB := magnitude(b)
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (magA * magB), nil
}

// magnitude is the L2 norm of vec.
func magnitude(vec []float32) float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	return float32(math.Sqrt(float64(sum)))
}
