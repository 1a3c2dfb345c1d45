package stft

import (
	"github.com/emer/wpe/linalg"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Synthesizer performs overlap-add reconstruction of a sequence of
// Hermitian-symmetric subband frames (the output of wpe.Dereverberator.Next)
// back into a PCM signal.
type Synthesizer struct {
	winLen int
	hop    int
	window []float64
	ifft   *fourier.CmplxFFT
}

// NewSynthesizer creates a Synthesizer matching an Analyzer's window length
// and hop size.
func NewSynthesizer(winLen, hop int) *Synthesizer {
	return &Synthesizer{
		winLen: winLen,
		hop:    hop,
		window: linalg.Hann(winLen),
		ifft:   fourier.NewCmplxFFT(winLen),
	}
}

// Synthesize reconstructs a PCM signal from a batch of subband frames via
// windowed overlap-add. The inverse FFT output is scaled by 1/winLen (the
// gonum transform pair is unnormalized), and each output sample is divided
// by the running sum of squared synthesis-window values that overlap it, so
// the analysis and synthesis windows cancel at any hop size wherever that
// sum is nonzero.
func (s *Synthesizer) Synthesize(frames [][]complex128) []float64 {
	if len(frames) == 0 {
		return nil
	}
	outLen := s.hop*(len(frames)-1) + s.winLen
	out := make([]float64, outLen)
	wsum := make([]float64, outLen)
	scale := 1 / float64(s.winLen)

	for fi, frame := range frames {
		seq := s.ifft.Sequence(nil, frame)
		base := fi * s.hop
		for i := 0; i < s.winLen; i++ {
			out[base+i] += real(seq[i]) * scale * s.window[i]
			wsum[base+i] += s.window[i] * s.window[i]
		}
	}

	for i := range out {
		if wsum[i] > 1e-12 {
			out[i] /= wsum[i]
		}
	}
	return out
}
