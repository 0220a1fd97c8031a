// Package retrieval ranks snapshot entries by cosine similarity to a query
// vector with an exact linear scan.
package retrieval

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Zero-norm inputs, mismatched lengths and non-finite results yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return cosine(a, b, norm(a), norm(b))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// cosine uses precomputed norms. Accumulation is in float64.
func cosine(a, b []float32, na, nb float64) float64 {
	if len(a) != len(b) || na == 0 || nb == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	sim := dot / (na * nb)
	switch {
	case math.IsNaN(sim) || math.IsInf(sim, 0):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}
