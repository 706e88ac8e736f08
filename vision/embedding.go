package vision

import (
	"gonum.org/v1/gonum/floats"
)

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func Normalize(v []float64) []float64 {
	out := append([]float64(nil), v...)
	n := floats.Norm(out, 2)
	if n == 0 {
		return out
	}
	floats.Scale(1/n, out)
	return out
}

// CosineSimilarity of two equal length vectors. Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
