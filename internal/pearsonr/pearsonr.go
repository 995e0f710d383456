// Package pearsonr computes the Pearson correlation coefficient on
// mean-centered, unit-norm flattened vectors, the similarity metric used
// throughout recall and reconstruction.
package pearsonr

import "math"

// Corr returns the Pearson correlation coefficient between a and b.
// Panics if len(a) != len(b); callers always compare same-shaped attractors.
// If either vector has zero variance, r is defined as 0.
func Corr(a, b []float32) float64 {
	if len(a) != len(b) {
		panic("pearsonr: mismatched vector lengths")
	}
	n := len(a)
	if n == 0 {
		return 0
	}

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += float64(a[i])
		meanB += float64(b[i])
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var sumAB, sumA2, sumB2 float64
	for i := 0; i < n; i++ {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		sumAB += da * db
		sumA2 += da * da
		sumB2 += db * db
	}

	norm := math.Sqrt(sumA2 * sumB2)
	if norm == 0 {
		return 0
	}
	return sumAB / norm
}
