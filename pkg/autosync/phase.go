package autosync

import (
	"fmt"
)

// Phase is what is reported to the user while an attempt is running.
type Phase int

const (
	PhaseUndefined = Phase(iota)
	PhaseListening
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseUndefined:
		return "undefined"
	case PhaseListening:
		return "listening"
	case PhaseProcessing:
		return "processing"
	default:
		return fmt.Sprintf("unknown_phase_%d", int(p))
	}
}

// State is the internal state of an attempt.
type State int

const (
	StateIdle = State(iota)
	StateAcquiringContext
	StateAcquiringMic
	StateCapturing
	StateAnalyzing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringContext:
		return "acquiring_context"
	case StateAcquiringMic:
		return "acquiring_mic"
	case StateCapturing:
		return "capturing"
	case StateAnalyzing:
		return "analyzing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("unknown_state_%d", int(s))
	}
}
