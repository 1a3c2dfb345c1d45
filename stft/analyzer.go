// Package stft provides a concrete SubbandSource/sink pair: a windowed-FFT
// analysis filterbank and an overlap-add synthesis filterbank. The
// dereverberation core (package wpe) only depends on the SubbandSource
// interface; this package exists so the module is runnable end-to-end
// against a real PCM signal, generalizing the teacher's
// dft.Params.Filter/FftReal pipeline (emer-auditory/dft/dft.go) from a
// power-spectrum feature extractor into a full analysis/synthesis pair that
// preserves phase and produces genuinely Hermitian-symmetric frames.
package stft

import (
	"github.com/emer/wpe"
	"github.com/emer/wpe/linalg"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer is a windowed-FFT subband analysis source over an in-memory PCM
// signal (spec §6's SubbandSource, out-of-scope as "core" but required to
// drive the estimator against real audio).
type Analyzer struct {
	signal []float64
	winLen int
	hop    int
	window []float64
	fft    *fourier.CmplxFFT
	pos    int
}

// NewAnalyzer creates an Analyzer over signal with FFT size winLen (K) and
// hop size hop, using a Hann analysis window.
func NewAnalyzer(signal []float64, winLen, hop int) *Analyzer {
	return &Analyzer{
		signal: signal,
		winLen: winLen,
		hop:    hop,
		window: linalg.Hann(winLen),
		fft:    fourier.NewCmplxFFT(winLen),
	}
}

// Size returns K, the FFT length / subband count.
func (a *Analyzer) Size() int { return a.winLen }

// Next returns the next windowed-FFT frame, or wpe.ErrEndOfStream once the
// signal is exhausted.
func (a *Analyzer) Next(frameNo int) ([]complex128, error) {
	if a.pos+a.winLen > len(a.signal) {
		return nil, wpe.ErrEndOfStream
	}
	buf := make([]complex128, a.winLen)
	for i := 0; i < a.winLen; i++ {
		buf[i] = complex(a.signal[a.pos+i]*a.window[i], 0)
	}
	a.pos += a.hop
	return a.fft.Coefficients(nil, buf), nil
}

// Reset rewinds the analyzer to the start of the signal.
func (a *Analyzer) Reset() error {
	a.pos = 0
	return nil
}
