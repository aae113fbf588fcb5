package autosync

import (
	"fmt"
	"os"
	"time"

	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/capture"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Duration is the length of the capture window.
	Duration time.Duration `yaml:"duration"`

	// MaxLagSeconds is the maximal delay searched in either direction.
	MaxLagSeconds float64 `yaml:"max_lag_seconds"`

	// CorrelationThreshold is the minimal correlation of the best lag
	// to accept the result, in [0, 1].
	CorrelationThreshold float64 `yaml:"correlation_threshold"`

	// FrameSize and HopSize are in samples.
	FrameSize int `yaml:"frame_size"`
	HopSize   int `yaml:"hop_size"`

	// MinRMS is the RMS each captured buffer must exceed.
	MinRMS float64 `yaml:"min_rms"`

	// MinEnvelopeModulation is the minimal coefficient of variation of
	// each envelope (see envelope.Modulation). A less modulated envelope,
	// e.g. of a steady noise, fails the attempt with ReasonNoCorrelation.
	// Zero disables the check.
	MinEnvelopeModulation float64 `yaml:"min_envelope_modulation"`

	BatchSize int `yaml:"batch_size"`

	MinOffsetSeconds float64 `yaml:"min_offset_seconds"`
	MaxOffsetSeconds float64 `yaml:"max_offset_seconds"`

	ContextTimeout time.Duration `yaml:"context_timeout"`
	MicTimeout     time.Duration `yaml:"mic_timeout"`

	// CaptureTimeoutPadding is added to Duration to get the capture deadline.
	CaptureTimeoutPadding time.Duration `yaml:"capture_timeout_padding"`

	Mic graph.Constraints `yaml:"mic"`

	// PreciseRefinement additionally estimates the delay on the raw
	// samples with GCC-PHAT; see Diagnostics.PreciseOffsetSeconds.
	PreciseRefinement bool `yaml:"precise_refinement"`

	// RetainBuffers keeps the captured buffers in Outcome.Captured.
	RetainBuffers bool `yaml:"retain_buffers"`

	// OnPhase is called with PhaseListening right before the capture and
	// with PhaseProcessing right before the analysis.
	OnPhase func(Phase) `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Duration:              1500 * time.Millisecond,
		MaxLagSeconds:         2.0,
		CorrelationThreshold:  0.2,
		FrameSize:             1024,
		HopSize:               256,
		MinRMS:                0.001,
		MinEnvelopeModulation: 0.05,
		BatchSize:             capture.DefaultBatchSize,
		MinOffsetSeconds:      -5,
		MaxOffsetSeconds:      15,
		ContextTimeout:        2 * time.Second,
		MicTimeout:            10 * time.Second,
		CaptureTimeoutPadding: time.Second,
	}
}

func (cfg Config) Validate() error {
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", cfg.Duration)
	}
	if cfg.MaxLagSeconds < 0 {
		return fmt.Errorf("max_lag_seconds must not be negative, got %v", cfg.MaxLagSeconds)
	}
	if cfg.CorrelationThreshold < 0 || cfg.CorrelationThreshold > 1 {
		return fmt.Errorf("correlation_threshold must be within [0, 1], got %v", cfg.CorrelationThreshold)
	}
	if cfg.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", cfg.FrameSize)
	}
	if cfg.HopSize <= 0 {
		return fmt.Errorf("hop_size must be positive, got %d", cfg.HopSize)
	}
	if cfg.MinRMS < 0 {
		return fmt.Errorf("min_rms must not be negative, got %v", cfg.MinRMS)
	}
	if cfg.MinEnvelopeModulation < 0 {
		return fmt.Errorf("min_envelope_modulation must not be negative, got %v", cfg.MinEnvelopeModulation)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.MinOffsetSeconds > cfg.MaxOffsetSeconds {
		return fmt.Errorf("min_offset_seconds (%v) is greater than max_offset_seconds (%v)", cfg.MinOffsetSeconds, cfg.MaxOffsetSeconds)
	}
	if cfg.ContextTimeout <= 0 {
		return fmt.Errorf("context_timeout must be positive, got %v", cfg.ContextTimeout)
	}
	if cfg.MicTimeout <= 0 {
		return fmt.Errorf("mic_timeout must be positive, got %v", cfg.MicTimeout)
	}
	if cfg.CaptureTimeoutPadding < 0 {
		return fmt.Errorf("capture_timeout_padding must not be negative, got %v", cfg.CaptureTimeoutPadding)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse config file '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config in '%s': %w", path, err)
	}
	return cfg, nil
}
