// Package graph describes the audio processing graph the capture code taps
// into: a context with a sample rate and a lifecycle, nodes that can be
// connected to each other, and real-time processors that receive render
// quanta and hand batches over a non-blocking port.
package graph

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProcessorUnsupported is returned when the context cannot host
	// custom real-time processors.
	ErrProcessorUnsupported = errors.New("real-time processors are not supported by the audio context")

	// ErrPermissionDenied is returned when the user refused the access to the microphone.
	ErrPermissionDenied = errors.New("permission to use the microphone is denied")

	// ErrDeviceUnavailable is returned when there is no usable input device.
	ErrDeviceUnavailable = errors.New("the input device is unavailable")

	// ErrClosed is returned by operations on a closed context.
	ErrClosed = errors.New("the audio context is closed")

	// ErrNotConnected is returned by Disconnect if there is no such edge.
	ErrNotConnected = errors.New("the nodes are not connected")
)

type State int

const (
	StateUndefined = State(iota)
	StateSuspended
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown_state_%d", int(s))
	}
}

// Context is an audio processing context.
type Context interface {
	// ID identifies the context; processor registrations are scoped by it.
	ID() string
	SampleRate() int
	State() State
	Resume(ctx context.Context) error

	// RegisterProcessor makes the processor available by its name for
	// NewProcessorNode. Registering the same name twice is an error.
	RegisterProcessor(ctx context.Context, def ProcessorDefinition) error

	// NewProcessorNode instantiates a registered processor. The processor
	// posts its output to the given port.
	NewProcessorNode(ctx context.Context, name string, port Port) (Node, error)

	// NewStreamSource creates a node that emits the samples of the media stream.
	NewStreamSource(ctx context.Context, stream MediaStream) (Node, error)
}

// Node is a point in the graph.
type Node interface {
	Connect(dst Node) error
	Disconnect(dst Node) error
}

// Processor is called on the real-time thread once per render quantum.
// inputs[i][ch] are the samples of channel ch of the input i. It
// returns false when the processor no longer needs to be called.
type Processor interface {
	Process(inputs [][][]float32) bool
}

// ProcessorDefinition is what gets registered in a Context.
type ProcessorDefinition struct {
	Name string
	New  func(port Port) Processor
}

// Batch is a chunk of consecutive mono samples emitted by a processor.
type Batch struct {
	// Seq increases by one for every batch emitted by the same processor,
	// so the receiver can detect the batches it never got.
	Seq     uint64
	Samples []float32
}

// Port carries batches from the real-time thread to the consumer.
type Port interface {
	// Post never blocks. It returns false if the batch was dropped.
	Post(Batch) bool
}

// MediaStream is a live input stream, e.g. from a microphone.
type MediaStream interface {
	Stop() error
}

// Constraints are the processing options requested for a microphone stream.
type Constraints struct {
	EchoCancellation bool `yaml:"echo_cancellation"`
	NoiseSuppression bool `yaml:"noise_suppression"`
	AutoGainControl  bool `yaml:"auto_gain_control"`
}

type Microphone interface {
	Acquire(ctx context.Context, constraints Constraints) (MediaStream, error)
}
