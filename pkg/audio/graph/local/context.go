// Package local implements graph.Context on top of the local audio devices:
// the program node taps the audio being played, and the microphone streams
// are recorded with an audio.Recorder.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

// QuantumSize is the amount of samples processors receive per call.
const QuantumSize = 128

// DefaultSampleRate is what the audio is converted to if nothing else is requested.
const DefaultSampleRate = audio.SampleRate(48000)

type Context struct {
	id         string
	sampleRate audio.SampleRate

	locker     sync.Mutex
	state      graph.State
	processors map[string]graph.ProcessorDefinition
	sources    []*sourceNode
}

var _ graph.Context = (*Context)(nil)

// NewContext returns a suspended context; the audio is delivered to the
// processors only while it is running.
func NewContext(sampleRate audio.SampleRate) *Context {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &Context{
		id:         "local-" + uuid.NewString(),
		sampleRate: sampleRate,
		state:      graph.StateSuspended,
		processors: map[string]graph.ProcessorDefinition{},
	}
}

func (c *Context) ID() string {
	return c.id
}

func (c *Context) SampleRate() int {
	return int(c.sampleRate)
}

func (c *Context) State() graph.State {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.state
}

func (c *Context) Resume(ctx context.Context) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	switch c.state {
	case graph.StateClosed:
		return graph.ErrClosed
	case graph.StateRunning:
		return nil
	}
	logger.Debugf(ctx, "resuming the audio context %s", c.id)
	c.state = graph.StateRunning
	return nil
}

func (c *Context) Suspend(ctx context.Context) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	switch c.state {
	case graph.StateClosed:
		return graph.ErrClosed
	case graph.StateSuspended:
		return nil
	}
	logger.Debugf(ctx, "suspending the audio context %s", c.id)
	c.state = graph.StateSuspended
	return nil
}

// Close detaches every processor from every source; the context cannot
// be used after that.
func (c *Context) Close() error {
	c.locker.Lock()
	c.state = graph.StateClosed
	sources := c.sources
	c.sources = nil
	c.locker.Unlock()

	for _, src := range sources {
		src.disconnectAll()
	}
	return nil
}

func (c *Context) isRunning() bool {
	return c.State() == graph.StateRunning
}

func (c *Context) RegisterProcessor(
	ctx context.Context,
	def graph.ProcessorDefinition,
) error {
	logger.Debugf(ctx, "RegisterProcessor(%s)", def.Name)
	if def.New == nil {
		return fmt.Errorf("processor '%s' has no constructor", def.Name)
	}

	c.locker.Lock()
	defer c.locker.Unlock()
	if c.state == graph.StateClosed {
		return graph.ErrClosed
	}
	if _, ok := c.processors[def.Name]; ok {
		return fmt.Errorf("processor '%s' is already registered", def.Name)
	}
	c.processors[def.Name] = def
	return nil
}

func (c *Context) NewProcessorNode(
	ctx context.Context,
	name string,
	port graph.Port,
) (graph.Node, error) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.state == graph.StateClosed {
		return nil, graph.ErrClosed
	}
	def, ok := c.processors[name]
	if !ok {
		return nil, fmt.Errorf("processor '%s' is not registered", name)
	}
	return &processorNode{
		name:      name,
		processor: def.New(port),
	}, nil
}

// NewStreamSource accepts only the streams of this package's Microphone.
func (c *Context) NewStreamSource(
	ctx context.Context,
	stream graph.MediaStream,
) (graph.Node, error) {
	micStream, ok := stream.(*MicStream)
	if !ok {
		return nil, fmt.Errorf("unsupported media stream type %T", stream)
	}
	if micStream.node.graphCtx != c {
		return nil, fmt.Errorf("the media stream belongs to another audio context")
	}
	return micStream.node, nil
}

func (c *Context) newSourceNode(name string) *sourceNode {
	n := &sourceNode{
		name:     name,
		graphCtx: c,
		quantum:  make([]float32, 0, QuantumSize),
	}
	c.locker.Lock()
	defer c.locker.Unlock()
	c.sources = append(c.sources, n)
	return n
}

func (c *Context) forgetSourceNode(n *sourceNode) {
	c.locker.Lock()
	defer c.locker.Unlock()
	for idx, src := range c.sources {
		if src == n {
			c.sources = append(c.sources[:idx], c.sources[idx+1:]...)
			return
		}
	}
}
