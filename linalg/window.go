// Package linalg collects small numeric helpers shared by the subband
// analysis/synthesis stage and the dereverberation core: analysis windows
// and complex-vector norms. gonum.org/v1/gonum/mat has no complex Hermitian
// Cholesky (see the root package's DESIGN.md entry for cholesky.go), but its
// real-valued mat.Norm is the right tool for the window-energy bookkeeping
// below, the same role gonum plays in the teacher's dft.Params pipeline.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hann returns an n-point periodic Hann window, the window used by the stft
// package's analysis/synthesis filterbank.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// WindowEnergy returns the sum of squared window samples.
func WindowEnergy(w []float64) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Norm(v, 2) * mat.Norm(v, 2)
}
