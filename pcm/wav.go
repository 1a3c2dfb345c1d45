// Package pcm provides WAV decode/encode helpers, adapted from the
// teacher's sound.Wave (emer-auditory/sound/sound.go) but returning plain
// []float64 sample slices instead of an etensor.Float32 — the tensor
// framework that package is built on has no role in a dereverberation
// pipeline (see DESIGN.md).
package pcm

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Signal is a decoded mono PCM signal normalized to [-1, 1].
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Load reads a WAV file and downmixes it to mono by averaging channels.
func Load(path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcm: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("pcm: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("pcm: decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	nFrames := buf.NumFrames()
	samples := make([]float64, nFrames)
	for i := 0; i < nFrames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += floatAt(buf, i*channels+c)
		}
		samples[i] = sum / float64(channels)
	}

	return &Signal{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func floatAt(buf *audio.IntBuffer, idx int) float64 {
	switch buf.SourceBitDepth {
	case 32:
		return float64(buf.Data[idx]) / float64(0x7FFFFFFF)
	case 24:
		return float64(buf.Data[idx]) / float64(0x7FFFFF)
	case 16:
		return float64(buf.Data[idx]) / float64(0x7FFF)
	case 8:
		return float64(buf.Data[idx]) / float64(0x7F)
	default:
		return float64(buf.Data[idx]) / float64(0x7FFF)
	}
}

// Save writes a mono signal as a 16-bit PCM WAV file.
func Save(path string, sig *Signal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pcm: create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sig.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sig.SampleRate},
		Data:           make([]int, len(sig.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range sig.Samples {
		v := int(s * 0x7FFF)
		if v > 0x7FFF {
			v = 0x7FFF
		} else if v < -0x8000 {
			v = -0x8000
		}
		buf.Data[i] = v
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("pcm: write %s: %w", path, err)
	}
	return enc.Close()
}
