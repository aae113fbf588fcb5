package autosync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration)
	assert.Equal(t, 2.0, cfg.MaxLagSeconds)
	assert.Equal(t, 0.2, cfg.CorrelationThreshold)
	assert.Equal(t, 1024, cfg.FrameSize)
	assert.Equal(t, 256, cfg.HopSize)
	assert.Equal(t, 0.001, cfg.MinRMS)
	assert.Equal(t, 0.05, cfg.MinEnvelopeModulation)
	assert.Equal(t, 2048, cfg.BatchSize)
	assert.Equal(t, -5.0, cfg.MinOffsetSeconds)
	assert.Equal(t, 15.0, cfg.MaxOffsetSeconds)
	assert.Equal(t, graph.Constraints{}, cfg.Mic)
	assert.False(t, cfg.PreciseRefinement)
	assert.False(t, cfg.RetainBuffers)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"zero_duration":        func(c *Config) { c.Duration = 0 },
		"negative_max_lag":     func(c *Config) { c.MaxLagSeconds = -1 },
		"threshold_above_one":  func(c *Config) { c.CorrelationThreshold = 1.5 },
		"negative_threshold":   func(c *Config) { c.CorrelationThreshold = -0.1 },
		"zero_frame":           func(c *Config) { c.FrameSize = 0 },
		"zero_hop":             func(c *Config) { c.HopSize = 0 },
		"negative_min_rms":     func(c *Config) { c.MinRMS = -1 },
		"negative_modulation":  func(c *Config) { c.MinEnvelopeModulation = -0.01 },
		"zero_batch":           func(c *Config) { c.BatchSize = 0 },
		"inverted_clamp":       func(c *Config) { c.MinOffsetSeconds, c.MaxOffsetSeconds = 1, -1 },
		"zero_context_timeout": func(c *Config) { c.ContextTimeout = 0 },
		"zero_mic_timeout":     func(c *Config) { c.MicTimeout = 0 },
		"negative_padding":     func(c *Config) { c.CaptureTimeoutPadding = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("boundaries", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxLagSeconds = 0
		cfg.CorrelationThreshold = 1
		cfg.MinRMS = 0
		cfg.MinEnvelopeModulation = 0
		cfg.MinOffsetSeconds, cfg.MaxOffsetSeconds = 0, 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("partial", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
duration: 3s
max_lag_seconds: 1.5
correlation_threshold: 0.3
capture_timeout_padding: 250ms
mic:
  echo_cancellation: true
  noise_suppression: true
precise_refinement: true
min_envelope_modulation: 0.1
`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, cfg.Duration)
		assert.Equal(t, 1.5, cfg.MaxLagSeconds)
		assert.Equal(t, 0.3, cfg.CorrelationThreshold)
		assert.Equal(t, 250*time.Millisecond, cfg.CaptureTimeoutPadding)
		assert.Equal(t, graph.Constraints{EchoCancellation: true, NoiseSuppression: true}, cfg.Mic)
		assert.True(t, cfg.PreciseRefinement)
		assert.Equal(t, 0.1, cfg.MinEnvelopeModulation)

		// untouched fields keep the defaults
		assert.Equal(t, 1024, cfg.FrameSize)
		assert.Equal(t, 256, cfg.HopSize)
		assert.Equal(t, 10*time.Second, cfg.MicTimeout)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hop_size: 0\n"), 0o644))
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hop_size")
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "malformed.yaml")
		require.NoError(t, os.WriteFile(path, []byte("duration: [\n"), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
