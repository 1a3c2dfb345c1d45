package wpe

import "math"

// NormalEquations holds the per-subband weighted Hermitian covariance R and
// cross-correlation r accumulated over a frame history (spec §4.3). Only
// the lower triangle of R is populated; the upper triangle is implicit from
// Hermitian symmetry.
type NormalEquations struct {
	R         [][]complex128 // P x P, lower triangle populated
	r         []complex128   // length P
	Objective float64        // Σ |Y-gᴴv|²/θ + logθ, for diagnostic emission
}

// BuildNormalEquations accumulates R and r for subband k over the single-
// channel frame history, weighted by the inverse of the already-computed
// theta column (spec §4.3). g is the subband's current coefficient vector;
// it is not read, since the accumulated objective is computed from theta
// alone.
func BuildNormalEquations(frames [][]complex128, theta [][]float64, g []complex128, k, d, p int) *NormalEquations {
	eq := &NormalEquations{
		R: newLowerTriangle(p),
		r: make([]complex128, p),
	}
	nf := len(frames)
	for n := d; n < nf; n++ {
		th := theta[n][k]
		w := 1 / th
		v := LagVector(frames, k, n-d, p)

		for i := 0; i < p; i++ {
			for j := 0; j <= i; j++ {
				eq.R[i][j] += complex(w, 0) * v[i] * conj(v[j])
			}
		}
		y := frames[n][k]
		for i := 0; i < p; i++ {
			eq.r[i] += complex(w, 0) * conj(y) * v[i]
		}

		// theta is already the squared residual magnitude for this (n,g)
		// pair (spec §4.2), so |Y-gᴴv|²/θ collapses to 1; the objective
		// reduces to the closed-form Σ (1 + log θ) from substituting the
		// optimal θ back into the WPE objective.
		eq.Objective += 1 + math.Log(th)
	}
	return eq
}

func newLowerTriangle(p int) [][]complex128 {
	m := make([][]complex128, p)
	for i := range m {
		m[i] = make([]complex128, i+1)
	}
	return m
}

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

// BuildNormalEquationsMulti accumulates R and r for subband k and target
// channel targetC over the multi-channel frame history (spec §4.3). The
// composite lag vector v is shared across target channels (it packs every
// channel's lagged samples); only the weighting 1/theta and the target
// observation differ per targetC, so R and r are still computed
// independently for each target channel.
func BuildNormalEquationsMulti(frames [][][]complex128, theta [][][]float64, k, d, p, channels, targetC int) *NormalEquations {
	dim := p * channels
	eq := &NormalEquations{
		R: newLowerTriangle(dim),
		r: make([]complex128, dim),
	}
	nf := len(frames)
	for n := d; n < nf; n++ {
		th := theta[targetC][n][k]
		w := 1 / th
		v := MultiLagVector(frames, k, n-d, p, channels)

		for i := 0; i < dim; i++ {
			for j := 0; j <= i; j++ {
				eq.R[i][j] += complex(w, 0) * v[i] * conj(v[j])
			}
		}
		y := frames[n][targetC][k]
		for i := 0; i < dim; i++ {
			eq.r[i] += complex(w, 0) * conj(y) * v[i]
		}
		eq.Objective += 1 + math.Log(th)
	}
	return eq
}

// At returns R[i][j], reconstructing the upper triangle via Hermitian
// symmetry (R[i][j] = conj(R[j][i]) for j > i).
func (eq *NormalEquations) At(i, j int) complex128 {
	if j <= i {
		return eq.R[i][j]
	}
	return conj(eq.R[j][i])
}

// Dim returns P, the dimension of R.
func (eq *NormalEquations) Dim() int {
	return len(eq.R)
}
