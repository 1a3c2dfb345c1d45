package wpe

import (
	"math"

	"github.com/emer/wpe/linalg"
)

// LoadAlpha converts a relative diagonal load in dB to the linear scale
// factor alpha = 10^(loadDb/10) used by Load (spec §4.4).
func LoadAlpha(loadDB float64) float64 {
	return math.Pow(10, loadDB/10)
}

// Load regularizes R in place: each diagonal element becomes
// |R[i,i]| + alpha*max_i|R[i,i]|, with its imaginary part zeroed (the
// diagonal of a Hermitian matrix is real). alpha is LoadAlpha(loadDB)
// (spec §4.4 steps 1-2).
func (eq *NormalEquations) Load(loadDB float64) {
	alpha := LoadAlpha(loadDB)
	diag := make([]float64, eq.Dim())
	for i := range diag {
		diag[i] = real(eq.R[i][i])
	}
	m := linalg.MaxAbs(diag)
	for i := 0; i < eq.Dim(); i++ {
		eq.R[i][i] = complex(math.Abs(real(eq.R[i][i]))+m*alpha, 0)
	}
}

// LoadMulti applies the multi-channel diagonal loading policy: a fixed
// additive diagonalBias is applied to every diagonal element before the
// relative load in Load is computed, protecting against near-singular joint
// covariance between highly correlated channels (spec §4.4 step 3).
func (eq *NormalEquations) LoadMulti(loadDB, diagonalBias float64) {
	for i := 0; i < eq.Dim(); i++ {
		eq.R[i][i] += complex(diagonalBias, 0)
	}
	eq.Load(loadDB)
}
