package wpe

import "math"

// HermitianDot computes gᴴ·v = Σ conj(g[i])·v[i], the predicted value
// subtracted from the raw observation before computing the residual power
// (spec §4.2 step 2).
func HermitianDot(g, v []complex128) complex128 {
	var sum complex128
	for i := range g {
		sum += complex(real(g[i]), -imag(g[i])) * v[i]
	}
	return sum
}

// thetaFromResidual floors the squared residual magnitude at ThetaFloor^2,
// implementing theta = max(|r|, ThetaFloor)^2 (spec §4.2 step 3).
func thetaFromResidual(r complex128) float64 {
	mag := math.Hypot(real(r), imag(r))
	if mag < ThetaFloor {
		mag = ThetaFloor
	}
	return mag * mag
}

// ComputeThetaSingle recomputes the per-sample, per-subband reference power
// from the currently dereverberated estimate (spec §4.2). frames is the
// N_f-length single-channel frame history; g[k] holds the current
// prediction coefficients for subband k (zero-valued for subbands never
// estimated). d is the prediction delay D. The returned matrix is shaped
// N_f x K.
func ComputeThetaSingle(frames [][]complex128, g [][]complex128, d int) [][]float64 {
	nf := len(frames)
	if nf == 0 {
		return nil
	}
	k := len(frames[0])
	theta := make([][]float64, nf)
	p := len(g[0])
	for n := 0; n < nf; n++ {
		row := make([]float64, k)
		for sb := 0; sb < k; sb++ {
			r := frames[n][sb]
			if n >= d {
				v := LagVector(frames, sb, n-d, p)
				r -= HermitianDot(g[sb], v)
			}
			row[sb] = thetaFromResidual(r)
		}
		theta[n] = row
	}
	return theta
}

// ComputeThetaMulti is the multi-channel analogue of ComputeThetaSingle: g[c][k]
// holds the per-channel, per-subband coefficients, each of length P*channels
// (spec §3). The returned matrix is shaped C x N_f x K.
func ComputeThetaMulti(frames [][][]complex128, g [][][]complex128, d, p, channels int) [][][]float64 {
	nf := len(frames)
	if nf == 0 {
		return nil
	}
	k := len(frames[0][0])
	theta := make([][][]float64, channels)
	for c := 0; c < channels; c++ {
		theta[c] = make([][]float64, nf)
		for n := 0; n < nf; n++ {
			row := make([]float64, k)
			for sb := 0; sb < k; sb++ {
				r := frames[n][c][sb]
				if n >= d {
					v := MultiLagVector(frames, sb, n-d, p, channels)
					r -= HermitianDot(g[c][sb], v)
				}
				row[sb] = thetaFromResidual(r)
			}
			theta[c][n] = row
		}
	}
	return theta
}
