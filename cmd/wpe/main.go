// Command wpe runs subband-domain WPE dereverberation over a mono WAV file
// end-to-end: PCM load, STFT analysis, filter estimation, streaming
// application, overlap-add synthesis, and PCM save. Flag parsing follows
// the teacher's struct-tag CLI convention, swapped from its ad hoc flag
// package usage to github.com/alecthomas/kong for declarative parsing.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/emer/wpe"
	"github.com/emer/wpe/pcm"
	"github.com/emer/wpe/stft"
)

// cli mirrors wpe.Config's tunable fields plus the I/O paths and window
// parameters needed to drive the stft analysis/synthesis pair.
var cli struct {
	In  string `arg:"" help:"Input WAV path (mono or multi-channel, downmixed to mono)."`
	Out string `arg:"" help:"Output WAV path."`

	SubbandsN    int     `default:"512" help:"FFT/subband width K (must be even)."`
	LowerN       int     `default:"3" help:"Prediction delay D, in frames."`
	UpperN       int     `default:"15" help:"Last prediction lag; P = upperN - lowerN + 1."`
	IterationsN  int     `default:"3" help:"Estimator iterations per EstimateFilter call."`
	LoadDB       float64 `default:"-20" help:"Relative diagonal load, in dB."`
	BandWidth    float64 `default:"0" help:"Analysis bandwidth in Hz; 0 means full half-band."`
	Hop          int     `default:"128" help:"STFT hop size, in samples."`
	EstimateEnd  int     `default:"0" help:"Frame count to estimate over; 0 means until end of signal."`
	PrintSubband int     `default:"-1" help:"Subband index to emit per-iteration diagnostics for; -1 disables."`
	Verbose      bool    `help:"Enable debug-level logging."`
}

func main() {
	kong.Parse(&cli,
		kong.Description("Subband-domain weighted prediction error dereverberation."))

	logger := log.New(os.Stderr)
	if cli.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(logger); err != nil {
		logger.Error("wpe failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	sig, err := pcm.Load(cli.In)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}
	logger.Info("loaded input", "path", cli.In, "samples", len(sig.Samples), "sampleRate", sig.SampleRate)

	analyzer := stft.NewAnalyzer(sig.Samples, cli.SubbandsN, cli.Hop)

	cfg := wpe.ConfigDefault()
	cfg.SubbandsN = cli.SubbandsN
	cfg.LowerN = cli.LowerN
	cfg.UpperN = cli.UpperN
	cfg.IterationsN = cli.IterationsN
	cfg.LoadDB = cli.LoadDB
	cfg.BandWidth = cli.BandWidth
	cfg.SampleRate = float64(sig.SampleRate)
	cfg.PrintingSubbandX = cli.PrintSubband

	derev, err := wpe.New(cfg, analyzer, logger)
	if err != nil {
		return fmt.Errorf("construct dereverberator: %w", err)
	}

	nf, err := derev.EstimateFilter(0, cli.EstimateEnd)
	if err != nil {
		return fmt.Errorf("estimate filter: %w", err)
	}
	logger.Info("estimated filter", "framesUsed", nf)

	if err := derev.Reset(); err != nil {
		return fmt.Errorf("rewind input: %w", err)
	}

	var frames [][]complex128
	for frameNo := 0; ; frameNo++ {
		out, err := derev.Next(frameNo)
		if err != nil {
			if errors.Is(err, wpe.ErrEndOfStream) {
				break
			}
			return fmt.Errorf("apply filter at frame %d: %w", frameNo, err)
		}
		frames = append(frames, out)
	}
	logger.Info("dereverberated", "frames", len(frames))

	synth := stft.NewSynthesizer(cli.SubbandsN, cli.Hop)
	out := synth.Synthesize(frames)

	if err := pcm.Save(cli.Out, &pcm.Signal{Samples: out, SampleRate: sig.SampleRate}); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	logger.Info("saved output", "path", cli.Out, "samples", len(out))
	return nil
}
