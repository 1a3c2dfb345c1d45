// Package wpe implements weighted prediction error (WPE) dereverberation in
// the subband domain: a regularized linear-prediction filter, estimated per
// frequency subband from a buffered set of frames, that subtracts a delayed
// linear combination of past observations from the current one.
package wpe

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the error kinds from the dereverberator's
// error-handling contract. Callers should use errors.Is rather than string
// matching.
var (
	// ErrNotEstimated is returned by Next when called before EstimateFilter.
	ErrNotEstimated = errors.New("wpe: filter not estimated")
	// ErrFrameIndexSkip is returned by Next when frameNo does not advance by
	// exactly one from the previous call.
	ErrFrameIndexSkip = errors.New("wpe: frame index did not advance by one")
	// ErrChannelIndex is returned by GetOutput for an out-of-range channel.
	ErrChannelIndex = errors.New("wpe: channel index out of range")
	// ErrInputFull is returned by SetInput once C sources are attached.
	ErrInputFull = errors.New("wpe: all channel inputs already attached")
	// ErrBandwidthTooWide is returned by Validate when BandWidth exceeds the
	// Nyquist frequency.
	ErrBandwidthTooWide = errors.New("wpe: bandwidth exceeds sampleRate/2")
	// ErrCholeskyFailed wraps a failed Cholesky decomposition.
	ErrCholeskyFailed = errors.New("wpe: cholesky decomposition failed")
	// ErrEndOfStream signals upstream exhaustion; checked with errors.Is, not
	// treated as a hard failure by callers that want to drain gracefully.
	ErrEndOfStream = errors.New("wpe: end of stream")
)

// ThetaFloor is the minimum residual magnitude used when computing the
// reference power theta, so theta is never below ThetaFloor squared
// (spec §4.2); it prevents the weighted
// least-squares objective from blowing up on near-silent or perfectly
// predicted residuals.
const ThetaFloor = 1.0e-3

// Config holds the constructor options for a dereverberator (spec §6).
type Config struct {
	// SubbandsN (K) is the frame width. Must be even; the Hermitian mirror
	// assumes K/2 is the Nyquist bin.
	SubbandsN int
	// ChannelsN (C) is the upper bound on attached channel sources.
	// Ignored by the single-channel estimator.
	ChannelsN int
	// LowerN (D) is the prediction delay in frames.
	LowerN int
	// UpperN is the last lag index; P = UpperN - LowerN + 1.
	UpperN int
	// IterationsN (I) is the fixed number of estimator passes.
	IterationsN int
	// LoadDB is the relative diagonal load in dB; converts to
	// alpha = 10^(LoadDB/10).
	LoadDB float64
	// BandWidth is the analysis bandwidth in Hz; 0 means the full half-band.
	BandWidth float64
	// SampleRate is the sample rate in Hz.
	SampleRate float64
	// DiagonalBias is an absolute diagonal additive regularizer, used only
	// by the multi-channel orchestrator.
	DiagonalBias float64
	// PrintingSubbandX selects a subband for per-iteration diagnostic
	// logging (objective and white-noise gain). -1 disables diagnostics.
	PrintingSubbandX int
}

// PredictionOrder returns P = UpperN - LowerN + 1.
func (c Config) PredictionOrder() int {
	return c.UpperN - c.LowerN + 1
}

// Validate checks the Dimension invariant from spec §7. It does not change
// PrintingSubbandX; ConfigDefault sets its disabled value (-1). It must be called once at
// construction time; a failing Config is a fatal error at construction, not
// a recoverable runtime condition.
func (c *Config) Validate() error {
	if c.SubbandsN <= 0 || c.SubbandsN%2 != 0 {
		return fmt.Errorf("wpe: subbandsN must be positive and even, got %d", c.SubbandsN)
	}
	if c.UpperN < c.LowerN {
		return fmt.Errorf("wpe: upperN (%d) must be >= lowerN (%d)", c.UpperN, c.LowerN)
	}
	if c.IterationsN <= 0 {
		return fmt.Errorf("wpe: iterationsN must be positive, got %d", c.IterationsN)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("wpe: sampleRate must be positive, got %g", c.SampleRate)
	}
	nyquist := c.SampleRate / 2
	if c.BandWidth > nyquist {
		return fmt.Errorf("%w: bandwidth %g > nyquist %g", ErrBandwidthTooWide, c.BandWidth, nyquist)
	}
	return nil
}

// ActiveBandLimit returns L, the subband index defining the active
// (filtered) band: subbands k <= L or k >= K-L are active; the interior is
// passed through unfiltered (spec §3).
func (c Config) ActiveBandLimit() int {
	half := c.SubbandsN / 2
	if c.BandWidth == 0 {
		return half
	}
	nyquist := c.SampleRate / 2
	return int(float64(c.BandWidth) / nyquist * float64(half))
}

// IsActive reports whether subband k is in the active (filtered) band.
func (c Config) IsActive(k int) bool {
	l := c.ActiveBandLimit()
	return k <= l || k >= c.SubbandsN-l
}

// ConfigDefault returns a Config with PrintingSubbandX disabled (-1) and
// ChannelsN defaulted to 1, leaving all other fields zero for the caller to
// fill in.
func ConfigDefault() Config {
	return Config{
		ChannelsN:        1,
		PrintingSubbandX: -1,
	}
}

// SubbandSource is the upstream feature-stream interface (spec §6). It is
// implemented by the external STFT analysis stage; this module only
// consumes it (package stft provides one concrete implementation for
// standalone use).
type SubbandSource interface {
	// Next returns the next complex subband frame, or ErrEndOfStream once
	// the source is exhausted. frameNo is advisory and may be ignored by
	// implementations that track position internally.
	Next(frameNo int) ([]complex128, error)
	// Reset rewinds the source to its start.
	Reset() error
	// Size returns K, the number of subbands per frame.
	Size() int
}
