// Package multichannel implements the joint multi-channel WPE orchestrator
// (C9, spec §4.9): a primary component that pools frames across every
// attached channel source into one composite covariance per target channel,
// plus thin per-channel façades that expose the shared result through the
// same Next/EstimateFilter surface as the single-channel Dereverberator.
package multichannel

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/emer/wpe"
)

// state mirrors the single-channel lifecycle (spec §4.10).
type state int

const (
	stateUnestimated state = iota
	stateEstimated
	stateTerminated
)

// history is the bounded multi-channel frame ring, analogous to
// wpe.HistoryBuffer but indexed [sample][channel][subband] (spec §3, §4.9).
type history struct {
	frames [][][]complex128
	maxLen int
}

func newHistory(maxLen int) *history {
	return &history{maxLen: maxLen}
}

func (h *history) Append(frame [][]complex128) {
	if len(h.frames) >= h.maxLen {
		h.frames = append(h.frames[1:], frame)
		return
	}
	h.frames = append(h.frames, frame)
}

func (h *history) Len() int { return len(h.frames) }

func (h *history) Frames() [][][]complex128 { return h.frames }

func (h *history) Reset() { h.frames = nil }

// Orchestrator coordinates joint covariance estimation across every
// attached channel and computes each channel's dereverberated output from a
// single shared pass over the current frame (spec §4.9): the primary
// channel's façade triggers calcEveryChannelOutput once per frame number;
// every other façade just reads the cached result.
type Orchestrator struct {
	cfg    wpe.Config
	p      int
	logger *log.Logger

	sources []wpe.SubbandSource

	state state
	g     [][][]complex128 // [channel][subband], length P*ChannelsN

	hist        *history
	lastFrameNo *int
	outputs     [][]complex128 // per-channel output for the current frameNo
}

// New constructs a multi-channel Orchestrator with no sources attached yet;
// attach exactly cfg.ChannelsN sources via SetInput before calling
// EstimateFilter or Next.
func New(cfg wpe.Config, logger *log.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		if logger != nil {
			logger.Error("invalid config", "err", err)
		}
		return nil, err
	}
	p := cfg.PredictionOrder()
	g := make([][][]complex128, cfg.ChannelsN)
	for c := range g {
		g[c] = make([][]complex128, cfg.SubbandsN)
		for k := range g[c] {
			g[c][k] = make([]complex128, p*cfg.ChannelsN)
		}
	}
	return &Orchestrator{
		cfg:    cfg,
		p:      p,
		logger: logger,
		state:  stateUnestimated,
		g:      g,
		hist:   newHistory(p),
	}, nil
}

// SetInput attaches the next channel source in order 0..ChannelsN-1. It
// fails with wpe.ErrInputFull once ChannelsN sources are already attached
// (spec §6).
func (o *Orchestrator) SetInput(source wpe.SubbandSource) error {
	if len(o.sources) >= o.cfg.ChannelsN {
		return wpe.ErrInputFull
	}
	o.sources = append(o.sources, source)
	return nil
}

// Channel returns a façade bound to channel index idx. idx 0 is the primary
// channel: its Next call drives the shared per-frame computation for every
// channel; façades for other indices merely read the cached result and
// verify frame-number lockstep.
func (o *Orchestrator) Channel(idx int) (*Channel, error) {
	if idx < 0 || idx >= o.cfg.ChannelsN {
		return nil, wpe.ErrChannelIndex
	}
	return &Channel{orch: o, idx: idx, primary: idx == 0}, nil
}

// fillBuffer pulls one frame from every attached source per sample index,
// discarding `start` samples and collecting until `end` (0 means until any
// source exhausts), analogous to the single-channel fillBuffer but jointly
// across channels (spec §4.9).
func (o *Orchestrator) fillBuffer(start, end int) ([][][]complex128, error) {
	idx := 0
	for ; idx < start; idx++ {
		for _, s := range o.sources {
			if _, err := s.Next(idx); err != nil {
				if errors.Is(err, wpe.ErrEndOfStream) {
					return nil, nil
				}
				return nil, err
			}
		}
	}

	target := -1
	if end > 0 {
		target = end - start
	}

	var frames [][][]complex128
	for target < 0 || len(frames) < target {
		frame := make([][]complex128, len(o.sources))
		done := false
		for c, s := range o.sources {
			f, err := s.Next(idx)
			if err != nil {
				if errors.Is(err, wpe.ErrEndOfStream) {
					if o.logger != nil {
						o.logger.Warn("fillBuffer: upstream ended before target frame count",
							"channel", c, "collected", len(frames), "target", target)
					}
					done = true
					break
				}
				return nil, err
			}
			frame[c] = f
		}
		if done {
			break
		}
		frames = append(frames, frame)
		idx++
	}
	return frames, nil
}

// activeSubbands mirrors Dereverberator.activeSubbands for the joint
// estimator loop.
func (o *Orchestrator) activeSubbands() []int {
	half := o.cfg.SubbandsN / 2
	var ks []int
	for k := 0; k <= half; k++ {
		if o.cfg.IsActive(k) {
			ks = append(ks, k)
		}
	}
	return ks
}

// EstimateFilter orchestrates fillBuffer, the joint iterative estimator
// loop, source reset, and history clear (spec §4.9, §4.6). It returns N_f,
// the number of joint frames collected. A failed Cholesky decomposition is
// reported as a wrapped error rather than a panic: with a shared covariance
// across possibly near-identical channels, singularity is a config issue
// the caller should be able to recover from (spec §4.5).
func (o *Orchestrator) EstimateFilter(start, end int) (int, error) {
	frames, err := o.fillBuffer(start, end)
	if err != nil {
		return 0, err
	}
	nf := len(frames)

	g := make([][][]complex128, o.cfg.ChannelsN)
	for c := range g {
		g[c] = make([][]complex128, o.cfg.SubbandsN)
		for k := range g[c] {
			g[c][k] = make([]complex128, o.p*o.cfg.ChannelsN)
		}
	}

	active := o.activeSubbands()
	for iter := 0; iter < o.cfg.IterationsN; iter++ {
		theta := wpe.ComputeThetaMulti(frames, g, o.cfg.LowerN, o.p, o.cfg.ChannelsN)
		for c := 0; c < o.cfg.ChannelsN; c++ {
			for _, k := range active {
				eq := wpe.BuildNormalEquationsMulti(frames, theta, k, o.cfg.LowerN, o.p, o.cfg.ChannelsN, c)
				obj := eq.Objective
				eq.LoadMulti(o.cfg.LoadDB, o.cfg.DiagonalBias)
				newG, err := eq.Solve()
				if err != nil {
					err = fmt.Errorf("%w: channel %d subband %d: channels may be too similar; raise diagonal_bias or fall back to per-channel single-channel estimation", err, c, k)
					if o.logger != nil {
						o.logger.Error("multi-channel cholesky failed", "err", err)
					}
					return 0, err
				}
				g[c][k] = newG
				if o.logger != nil && o.cfg.PrintingSubbandX == k {
					o.logger.Info("estimator objective", "iter", iter, "channel", c, "subband", k, "objective", obj)
					o.logger.Info("estimator white-noise gain", "iter", iter, "channel", c, "subband", k, "wng_db", wpe.WhiteNoiseGain(newG))
				}
			}
		}
	}

	o.g = g
	o.hist.Reset()
	o.lastFrameNo = nil
	o.outputs = nil
	for _, s := range o.sources {
		if err := s.Reset(); err != nil {
			return 0, err
		}
	}
	o.state = stateEstimated
	return nf, nil
}

// calcEveryChannelOutput pulls one frame from every source, appends it to
// the joint history, and computes the dereverberated output for every
// channel's active subbands in one pass (spec §4.9), caching the result in
// o.outputs for the non-primary façades to read.
func (o *Orchestrator) calcEveryChannelOutput(frameNo int) error {
	frame := make([][]complex128, len(o.sources))
	for c, s := range o.sources {
		f, err := s.Next(frameNo)
		if err != nil {
			if errors.Is(err, wpe.ErrEndOfStream) {
				o.state = stateTerminated
				return wpe.ErrEndOfStream
			}
			return err
		}
		frame[c] = f
	}
	o.hist.Append(frame)

	k := o.cfg.SubbandsN
	half := k / 2
	outputs := make([][]complex128, o.cfg.ChannelsN)
	for c := 0; c < o.cfg.ChannelsN; c++ {
		out := make([]complex128, k)
		for sb := 0; sb <= half; sb++ {
			y := frame[c][sb]
			if frameNo >= o.cfg.LowerN && o.cfg.IsActive(sb) {
				s := o.hist.Len() - 1 - o.cfg.LowerN
				v := wpe.MultiLagVector(o.hist.Frames(), sb, s, o.p, o.cfg.ChannelsN)
				y -= wpe.HermitianDot(o.g[c][sb], v)
			}
			out[sb] = y
			if sb > 0 && sb < half {
				out[k-sb] = complex(real(y), -imag(y))
			}
		}
		outputs[c] = out
	}
	o.outputs = outputs
	next := frameNo
	o.lastFrameNo = &next
	return nil
}

// GetOutput returns the cached output for channel idx from the most recent
// calcEveryChannelOutput pass, returning wpe.ErrChannelIndex if idx is out of
// range.
func (o *Orchestrator) GetOutput(idx int) ([]complex128, error) {
	if idx < 0 || idx >= len(o.outputs) {
		return nil, wpe.ErrChannelIndex
	}
	return o.outputs[idx], nil
}

// Reset rewinds every attached source and clears the joint history and
// frame-index tracking, from any state (spec §4.10).
func (o *Orchestrator) Reset() error {
	for _, s := range o.sources {
		if err := s.Reset(); err != nil {
			return err
		}
	}
	o.hist.Reset()
	o.lastFrameNo = nil
	o.outputs = nil
	if o.state == stateTerminated {
		o.state = stateUnestimated
	}
	return nil
}

// ResetFilter transitions ESTIMATED -> UNESTIMATED without touching the
// persisted coefficients; EstimateFilter always starts from a fresh
// zero-initialized coefficient matrix regardless (spec property 8).
func (o *Orchestrator) ResetFilter() {
	o.state = stateUnestimated
}

// NextSpeaker performs Reset and zeroes every channel's filter
// coefficients (spec §4.10).
func (o *Orchestrator) NextSpeaker() error {
	if err := o.Reset(); err != nil {
		return err
	}
	for c := range o.g {
		for k := range o.g[c] {
			for i := range o.g[c][k] {
				o.g[c][k][i] = 0
			}
		}
	}
	o.state = stateUnestimated
	return nil
}

// Channel is a thin per-channel façade over an Orchestrator (spec §4.9). The
// primary façade (index 0) drives the shared computation on Next; every
// other façade reads the cached per-channel result and only checks that the
// caller is keeping the same lockstep frame number.
type Channel struct {
	orch    *Orchestrator
	idx     int
	primary bool
}

// Next returns this channel's dereverberated output for frameNo. Only the
// primary façade actually pulls from the sources and runs the shared
// computation; non-primary façades must be called after the primary, with
// the same frameNo the primary was called with in the same step, or they
// receive ErrFrameIndexSkip.
func (ch *Channel) Next(frameNo int) ([]complex128, error) {
	o := ch.orch
	if o.state == stateTerminated {
		return nil, wpe.ErrEndOfStream
	}
	if o.state != stateEstimated {
		return nil, wpe.ErrNotEstimated
	}

	if ch.primary {
		if o.lastFrameNo != nil && frameNo != *o.lastFrameNo+1 {
			return nil, wpe.ErrFrameIndexSkip
		}
		if err := o.calcEveryChannelOutput(frameNo); err != nil {
			return nil, err
		}
		return o.GetOutput(ch.idx)
	}

	if o.lastFrameNo == nil || frameNo != *o.lastFrameNo {
		return nil, wpe.ErrFrameIndexSkip
	}
	return o.GetOutput(ch.idx)
}
