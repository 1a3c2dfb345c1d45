package linalg

import "math"

// Norm2 returns the Euclidean norm of a complex vector.
func Norm2(v []complex128) float64 {
	var sumSq float64
	for _, c := range v {
		sumSq += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(sumSq)
}

// MaxAbs returns the maximum magnitude among a real slice's entries.
func MaxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
