package autosync

import (
	"time"

	"github.com/xaionaro-go/lyricsync/pkg/capture"
)

type Diagnostics struct {
	AttemptID  string `yaml:"attempt_id"`
	SampleRate int    `yaml:"sample_rate"`

	ProgramRMS float64 `yaml:"program_rms"`
	MicRMS     float64 `yaml:"mic_rms"`

	// ProgramModulation and MicModulation are the coefficients of
	// variation of the envelopes.
	ProgramModulation float64 `yaml:"program_modulation"`
	MicModulation     float64 `yaml:"mic_modulation"`

	ProgramSamples int           `yaml:"program_samples"`
	MicSamples     int           `yaml:"mic_samples"`
	ProgramStats   capture.Stats `yaml:"program_stats"`
	MicStats       capture.Stats `yaml:"mic_stats"`

	EnvelopeFrames int     `yaml:"envelope_frames"`
	MaxLag         int     `yaml:"max_lag"`
	Lag            int     `yaml:"lag"`
	Correlation    float64 `yaml:"correlation"`

	// RawOffsetSeconds is the offset before rounding and clamping.
	RawOffsetSeconds float64 `yaml:"raw_offset_seconds"`

	// PreciseOffsetSeconds is the GCC-PHAT estimation on the raw samples,
	// if it was requested and succeeded.
	PreciseOffsetSeconds *float64 `yaml:"precise_offset_seconds,omitempty"`

	Elapsed time.Duration `yaml:"elapsed"`
}

// Outcome is the result of an attempt: either OK with the offset, or
// a Reason with a human-readable Message.
type Outcome struct {
	OK            bool    `yaml:"ok"`
	OffsetSeconds float64 `yaml:"offset_seconds"`
	Correlation   float64 `yaml:"correlation"`

	Reason  Reason `yaml:"reason,omitempty"`
	Message string `yaml:"message,omitempty"`

	Diagnostics Diagnostics `yaml:"diagnostics"`

	// Captured is set only with Config.RetainBuffers.
	Captured *capture.Result `yaml:"-"`

	err error
}

// Err returns nil for a successful outcome, and *Error otherwise.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	return &Error{
		Reason:      o.Reason,
		Message:     o.Message,
		Diagnostics: o.Diagnostics,
		Err:         o.err,
	}
}

func success(offsetSeconds, correlation float64, diag Diagnostics) Outcome {
	return Outcome{
		OK:            true,
		OffsetSeconds: offsetSeconds,
		Correlation:   correlation,
		Diagnostics:   diag,
	}
}

func failure(reason Reason, message string, err error, diag Diagnostics) Outcome {
	return Outcome{
		Reason:      reason,
		Message:     message,
		Diagnostics: diag,
		err:         err,
	}
}
