package multichannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emer/wpe"
)

type sliceSource struct {
	frames [][]complex128
	k      int
	pos    int
}

func newSliceSource(frames [][]complex128, k int) *sliceSource {
	return &sliceSource{frames: frames, k: k}
}

func (s *sliceSource) Next(frameNo int) ([]complex128, error) {
	if s.pos >= len(s.frames) {
		return nil, wpe.ErrEndOfStream
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) Reset() error {
	s.pos = 0
	return nil
}

func (s *sliceSource) Size() int { return s.k }

func randomFrames(n, k int, seed float64) [][]complex128 {
	frames := make([][]complex128, n)
	for i := range frames {
		row := make([]complex128, k)
		for j := range row {
			row[j] = complex(seed*float64(i+1)+float64(j), -float64(j)*0.1)
		}
		frames[i] = row
	}
	return frames
}

func testConfig() wpe.Config {
	return wpe.Config{
		SubbandsN:    4,
		ChannelsN:    2,
		LowerN:       1,
		UpperN:       2,
		IterationsN:  2,
		LoadDB:       -10,
		DiagonalBias: 1e-3,
		SampleRate:   16000,
	}
}

func newOrchestratorWithSources(t *testing.T, cfg wpe.Config, nEstimate, nStream int) (*Orchestrator, []*sliceSource) {
	t.Helper()
	o, err := New(cfg, nil)
	require.NoError(t, err)

	sources := make([]*sliceSource, cfg.ChannelsN)
	for c := 0; c < cfg.ChannelsN; c++ {
		frames := randomFrames(nEstimate+nStream, cfg.SubbandsN, 0.1*float64(c+1))
		src := newSliceSource(frames, cfg.SubbandsN)
		sources[c] = src
		require.NoError(t, o.SetInput(src))
	}
	return o, sources
}

func TestSetInputFailsWhenFull(t *testing.T) {
	cfg := testConfig()
	o, err := New(cfg, nil)
	require.NoError(t, err)
	for c := 0; c < cfg.ChannelsN; c++ {
		require.NoError(t, o.SetInput(newSliceSource(nil, cfg.SubbandsN)))
	}
	err = o.SetInput(newSliceSource(nil, cfg.SubbandsN))
	assert.ErrorIs(t, err, wpe.ErrInputFull)
}

func TestChannelRejectsOutOfRangeIndex(t *testing.T) {
	cfg := testConfig()
	o, err := New(cfg, nil)
	require.NoError(t, err)
	_, err = o.Channel(5)
	assert.ErrorIs(t, err, wpe.ErrChannelIndex)
}

func TestEstimateFilterReturnsJointFrameCount(t *testing.T) {
	cfg := testConfig()
	o, _ := newOrchestratorWithSources(t, cfg, 10, 0)

	nf, err := o.EstimateFilter(0, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, nf)
}

// TestPrimaryFacadeDrivesSharedComputation checks that only the primary
// façade's Next call advances the orchestrator's shared state, and
// non-primary façades read the same cached result.
func TestPrimaryFacadeDrivesSharedComputation(t *testing.T) {
	cfg := testConfig()
	o, sources := newOrchestratorWithSources(t, cfg, 10, 5)
	_, err := o.EstimateFilter(0, 10)
	require.NoError(t, err)
	for _, s := range sources {
		s.pos = 10 // EstimateFilter resets sources; re-seek past the estimation window
	}

	ch0, err := o.Channel(0)
	require.NoError(t, err)
	ch1, err := o.Channel(1)
	require.NoError(t, err)

	out0, err := ch0.Next(0)
	require.NoError(t, err)
	out1, err := ch1.Next(0)
	require.NoError(t, err)

	assert.NotNil(t, out0)
	assert.NotNil(t, out1)
	for _, s := range sources {
		assert.Equal(t, 11, s.pos, "only the primary façade pulls a frame from each source")
	}
	assert.Equal(t, o.outputs[1], out1)
}

func TestNonPrimaryFacadeRejectsFrameSkip(t *testing.T) {
	cfg := testConfig()
	o, sources := newOrchestratorWithSources(t, cfg, 10, 5)
	_, err := o.EstimateFilter(0, 10)
	require.NoError(t, err)
	for _, s := range sources {
		s.pos = 10
	}

	ch1, err := o.Channel(1)
	require.NoError(t, err)
	_, err = ch1.Next(0)
	assert.ErrorIs(t, err, wpe.ErrFrameIndexSkip)
}

// TestOrchestratorHermitianMirror checks invariant 3 for the joint
// multi-channel output, analogous to the single-channel case.
func TestOrchestratorHermitianMirror(t *testing.T) {
	cfg := testConfig()
	o, sources := newOrchestratorWithSources(t, cfg, 10, 5)
	_, err := o.EstimateFilter(0, 10)
	require.NoError(t, err)
	for _, s := range sources {
		s.pos = 10
	}

	ch0, err := o.Channel(0)
	require.NoError(t, err)
	out, err := ch0.Next(0)
	require.NoError(t, err)

	k := cfg.SubbandsN
	for sb := 1; sb < k/2; sb++ {
		assert.InDelta(t, real(out[sb]), real(out[k-sb]), 1e-9)
		assert.InDelta(t, -imag(out[sb]), imag(out[k-sb]), 1e-9)
	}
}

func TestNextSpeakerZeroesAllChannelCoefficients(t *testing.T) {
	cfg := testConfig()
	o, _ := newOrchestratorWithSources(t, cfg, 10, 0)
	_, err := o.EstimateFilter(0, 10)
	require.NoError(t, err)

	require.NoError(t, o.NextSpeaker())
	for _, ch := range o.g {
		for _, row := range ch {
			for _, c := range row {
				assert.Equal(t, complex128(0), c)
			}
		}
	}
}

// TestIdenticalChannelsSurviveWithDiagonalBias checks S2: two identical
// multi-channel input streams make the raw joint covariance singular
// (every channel's regressors are linearly dependent), but diagonal loading
// (diagonal_bias plus the relative load) keeps the Cholesky decomposition
// from failing, and the two channels'
// streaming output then matches within numeric tolerance.
func TestIdenticalChannelsSurviveWithDiagonalBias(t *testing.T) {
	cfg := testConfig()
	cfg.DiagonalBias = 1e-3

	o, err := New(cfg, nil)
	require.NoError(t, err)

	shared := randomFrames(20, cfg.SubbandsN, 0.2)
	sources := make([]*sliceSource, cfg.ChannelsN)
	for c := 0; c < cfg.ChannelsN; c++ {
		// deep-copy the shared frames so each channel owns an independent
		// position cursor, but the sample VALUES are identical.
		frames := make([][]complex128, len(shared))
		for i, f := range shared {
			row := make([]complex128, len(f))
			copy(row, f)
			frames[i] = row
		}
		src := newSliceSource(frames, cfg.SubbandsN)
		sources[c] = src
		require.NoError(t, o.SetInput(src))
	}

	_, err = o.EstimateFilter(0, 15)
	require.NoError(t, err, "diagonal_bias must keep the singular joint covariance solvable")

	for _, s := range sources {
		s.pos = 15
	}

	outs := make([][]complex128, cfg.ChannelsN)
	for c := 0; c < cfg.ChannelsN; c++ {
		ch, err := o.Channel(c)
		require.NoError(t, err)
		out, err := ch.Next(15)
		require.NoError(t, err)
		outs[c] = out
	}

	for c := 1; c < cfg.ChannelsN; c++ {
		for sb := range outs[0] {
			assert.InDelta(t, real(outs[0][sb]), real(outs[c][sb]), 1e-6)
			assert.InDelta(t, imag(outs[0][sb]), imag(outs[c][sb]), 1e-6)
		}
	}
}
