package wpe

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emer/wpe/linalg"
)

// Solve Cholesky-decomposes the (already-loaded) Hermitian positive-definite
// R and solves R·g = r for g (spec §4.5). R is read through At, so only the
// lower triangle needs to be populated; the decomposition treats R as
// Hermitian. A failed decomposition wraps ErrCholeskyFailed.
//
// gonum's mat.Cholesky only decomposes real symmetric matrices (SymDense);
// it has no complex Hermitian counterpart, so the decomposition is
// implemented directly here rather than adapted from a library (see
// DESIGN.md).
func (eq *NormalEquations) Solve() ([]complex128, error) {
	n := eq.Dim()
	l := newLowerTriangle(n)

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := eq.At(i, j)
			for k := 0; k < j; k++ {
				sum -= l[i][k] * conj(l[j][k])
			}
			if i == j {
				d := real(sum)
				if d <= 0 || math.IsNaN(d) {
					return nil, fmt.Errorf("%w: non-positive pivot at %d (%g)", ErrCholeskyFailed, i, d)
				}
				l[i][i] = complex(math.Sqrt(d), 0)
			} else {
				if cmplx.Abs(l[j][j]) == 0 {
					return nil, fmt.Errorf("%w: zero pivot at %d", ErrCholeskyFailed, j)
				}
				l[i][j] = sum / l[j][j]
			}
		}
	}

	// Forward substitution: L·y = r.
	y := make([]complex128, n)
	for i := 0; i < n; i++ {
		sum := eq.r[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * y[k]
		}
		y[i] = sum / l[i][i]
	}

	// Backward substitution: Lᴴ·g = y.
	g := make([]complex128, n)
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for k := i + 1; k < n; k++ {
			sum -= conj(l[k][i]) * g[k]
		}
		g[i] = sum / l[i][i]
	}
	return g, nil
}

// WhiteNoiseGain computes 20*log10(||g||2), the diagnostic white-noise gain
// from spec §4.6/GLOSSARY.
func WhiteNoiseGain(g []complex128) float64 {
	norm := linalg.Norm2(g)
	if norm == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(norm)
}
