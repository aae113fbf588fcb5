package autosync

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonAudioNotReady      = Reason("audio-not-ready")
	ReasonMicDenied          = Reason("mic-denied")
	ReasonCaptureUnsupported = Reason("capture-unsupported")
	ReasonCaptureTimeout     = Reason("capture-timeout")
	ReasonCaptureFailed      = Reason("capture-failed")
	ReasonLowSignal          = Reason("low-signal")
	ReasonNoCorrelation      = Reason("no-correlation")
	ReasonBusy               = Reason("busy")
	ReasonCanceled           = Reason("canceled")
	ReasonInvalidConfig      = Reason("invalid-config")
)

var (
	ErrAudioNotReady      = errors.New(string(ReasonAudioNotReady))
	ErrMicDenied          = errors.New(string(ReasonMicDenied))
	ErrCaptureUnsupported = errors.New(string(ReasonCaptureUnsupported))
	ErrCaptureTimeout     = errors.New(string(ReasonCaptureTimeout))
	ErrCaptureFailed      = errors.New(string(ReasonCaptureFailed))
	ErrLowSignal          = errors.New(string(ReasonLowSignal))
	ErrNoCorrelation      = errors.New(string(ReasonNoCorrelation))
	ErrBusy               = errors.New(string(ReasonBusy))
	ErrCanceled           = errors.New(string(ReasonCanceled))
	ErrInvalidConfig      = errors.New(string(ReasonInvalidConfig))
)

var reasonErrors = map[Reason]error{
	ReasonAudioNotReady:      ErrAudioNotReady,
	ReasonMicDenied:          ErrMicDenied,
	ReasonCaptureUnsupported: ErrCaptureUnsupported,
	ReasonCaptureTimeout:     ErrCaptureTimeout,
	ReasonCaptureFailed:      ErrCaptureFailed,
	ReasonLowSignal:          ErrLowSignal,
	ReasonNoCorrelation:      ErrNoCorrelation,
	ReasonBusy:               ErrBusy,
	ReasonCanceled:           ErrCanceled,
	ReasonInvalidConfig:      ErrInvalidConfig,
}

// Error is a failed attempt. errors.Is matches it against the Err* value
// of its Reason as well as against the underlying error.
type Error struct {
	Reason      Reason
	Message     string
	Diagnostics Diagnostics
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel, ok := reasonErrors[e.Reason]
	return ok && sentinel == target
}
