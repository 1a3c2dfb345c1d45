package wpe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func baseConfig() Config {
	return Config{
		SubbandsN:   512,
		LowerN:      3,
		UpperN:      10,
		IterationsN: 2,
		SampleRate:  16000,
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	c := baseConfig()
	require.NoError(t, c.Validate())
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"odd subbands":      func(c *Config) { c.SubbandsN = 513 },
		"negative subbands":  func(c *Config) { c.SubbandsN = -2 },
		"upper below lower": func(c *Config) { c.UpperN = c.LowerN - 1 },
		"zero iterations":   func(c *Config) { c.IterationsN = 0 },
		"zero sample rate":  func(c *Config) { c.SampleRate = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := baseConfig()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestConfigValidateBandwidthTooWide(t *testing.T) {
	c := baseConfig()
	c.BandWidth = c.SampleRate // exceeds Nyquist (SampleRate/2)
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBandwidthTooWide))
}

func TestPredictionOrder(t *testing.T) {
	c := Config{LowerN: 3, UpperN: 15}
	assert.Equal(t, 13, c.PredictionOrder())
}

func TestActiveBandLimitFullBand(t *testing.T) {
	c := Config{SubbandsN: 512, BandWidth: 0}
	assert.Equal(t, 256, c.ActiveBandLimit())
}

// TestIsActiveMaskSymmetry checks invariant 10: the active-band mask is
// symmetric around the Nyquist bin for every bandWidth in (0, sampleRate/2].
func TestIsActiveMaskSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.SampledFrom([]int{64, 128, 256, 512}).Draw(t, "subbandsN")
		sr := rapid.Float64Range(8000, 48000).Draw(t, "sampleRate")
		bw := rapid.Float64Range(0, sr/2).Draw(t, "bandwidth")
		c := Config{SubbandsN: k, SampleRate: sr, BandWidth: bw}

		for sb := 0; sb <= k/2; sb++ {
			mirror := k - sb
			if mirror >= k {
				continue
			}
			assert.Equal(t, c.IsActive(sb), c.IsActive(mirror),
				"subband %d and its mirror %d must agree on activity", sb, mirror)
		}
	})
}
