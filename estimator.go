package wpe

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// state is the dereverberator's lifecycle state (spec §4.10).
type state int

const (
	stateUnestimated state = iota
	stateEstimated
	stateTerminated
)

// Dereverberator is the single-channel WPE estimator/filter. It alternates,
// during EstimateFilter, between recomputing theta and solving the
// regularized normal equations per subband (C2-C6), then applies the
// resulting coefficients to a live stream of frames (C7-C8).
type Dereverberator struct {
	cfg    Config
	p      int
	source SubbandSource
	logger *log.Logger

	state state
	g     [][]complex128 // per subband, length P; zero until estimated

	hist        *HistoryBuffer
	lastFrameNo *int
}

// New constructs a single-channel Dereverberator. cfg is validated; logger
// may be nil to disable diagnostic output.
func New(cfg Config, source SubbandSource, logger *log.Logger) (*Dereverberator, error) {
	if err := cfg.Validate(); err != nil {
		if logger != nil {
			logger.Error("invalid config", "err", err)
		}
		return nil, err
	}
	p := cfg.PredictionOrder()
	g := make([][]complex128, cfg.SubbandsN)
	for k := range g {
		g[k] = make([]complex128, p)
	}
	return &Dereverberator{
		cfg:    cfg,
		p:      p,
		source: source,
		logger: logger,
		state:  stateUnestimated,
		g:      g,
		hist:   NewHistoryBuffer(p),
	}, nil
}

// activeSubbands returns the indices k in [0, K/2] that are in the analysis
// band (spec §3's band mask, restricted to the half-spectrum the estimator
// operates on).
func (d *Dereverberator) activeSubbands() []int {
	half := d.cfg.SubbandsN / 2
	var ks []int
	for k := 0; k <= half; k++ {
		if d.cfg.IsActive(k) {
			ks = append(ks, k)
		}
	}
	return ks
}

// fillBuffer pulls frames from the source, discarding `start` frames and
// collecting until `end` is reached (end==0 means "until exhaustion"), or
// the source ends early. An early end-of-stream during collection is not an
// error: the estimator proceeds with whatever was gathered (spec §7, §9
// Open Questions).
func (d *Dereverberator) fillBuffer(start, end int) ([][]complex128, error) {
	idx := 0
	for ; idx < start; idx++ {
		if _, err := d.source.Next(idx); err != nil {
			if errors.Is(err, ErrEndOfStream) {
				return nil, nil
			}
			return nil, err
		}
	}

	target := -1
	if end > 0 {
		target = end - start
	}

	var frames [][]complex128
	for target < 0 || len(frames) < target {
		f, err := d.source.Next(idx)
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				if d.logger != nil {
					d.logger.Warn("fillBuffer: upstream ended before target frame count",
						"collected", len(frames), "target", target)
				}
				break
			}
			return nil, err
		}
		frames = append(frames, f)
		idx++
	}
	return frames, nil
}

// EstimateFilter runs fillBuffer(start, end) then the iterative estimator
// loop (spec §4.6) over the collected frames, producing new prediction
// coefficients for every active subband. It returns N_f, the number of
// frames collected. On return, estimated=true and the streaming history
// buffer is empty (spec invariant 1).
func (d *Dereverberator) EstimateFilter(start, end int) (int, error) {
	frames, err := d.fillBuffer(start, end)
	if err != nil {
		return 0, err
	}
	nf := len(frames)

	g := make([][]complex128, d.cfg.SubbandsN)
	for k := range g {
		g[k] = make([]complex128, d.p)
	}

	active := d.activeSubbands()
	for iter := 0; iter < d.cfg.IterationsN; iter++ {
		theta := ComputeThetaSingle(frames, g, d.cfg.LowerN)
		for _, k := range active {
			eq := BuildNormalEquations(frames, theta, g[k], k, d.cfg.LowerN, d.p)
			obj := eq.Objective
			eq.Load(d.cfg.LoadDB)
			newG, err := eq.Solve()
			if err != nil {
				panic(fmt.Sprintf("wpe: single-channel cholesky failed for subband %d: %v", k, err))
			}
			g[k] = newG
			if d.logger != nil && d.cfg.PrintingSubbandX == k {
				d.logger.Info("estimator objective", "iter", iter, "subband", k, "objective", obj)
				d.logger.Info("estimator white-noise gain", "iter", iter, "subband", k, "wng_db", WhiteNoiseGain(newG))
			}
		}
	}

	d.g = g
	d.hist.Reset()
	d.lastFrameNo = nil
	d.state = stateEstimated
	return nf, nil
}

// ResetFilter transitions ESTIMATED -> UNESTIMATED without touching the
// persisted coefficients or streaming history (spec §4.10); the next
// EstimateFilter call always starts from a fresh zero-initialized
// coefficient matrix regardless, so this alone guarantees the bitwise
// reproducibility in spec property 8.
func (d *Dereverberator) ResetFilter() {
	d.state = stateUnestimated
}

// Reset rewinds the upstream source and clears the streaming history and
// frame-index tracking, from any state (spec §4.10).
func (d *Dereverberator) Reset() error {
	if err := d.source.Reset(); err != nil {
		return err
	}
	d.hist.Reset()
	d.lastFrameNo = nil
	if d.state == stateTerminated {
		d.state = stateUnestimated
	}
	return nil
}

// NextSpeaker performs Reset and zeroes every filter coefficient (spec
// §4.10); theta is left untouched (§9 Open Questions) since it is
// reallocated on the next EstimateFilter call.
func (d *Dereverberator) NextSpeaker() error {
	if err := d.Reset(); err != nil {
		return err
	}
	for k := range d.g {
		for i := range d.g[k] {
			d.g[k][i] = 0
		}
	}
	d.state = stateUnestimated
	return nil
}
