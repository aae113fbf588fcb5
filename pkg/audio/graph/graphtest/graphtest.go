// Package graphtest provides in-memory spies of the graph collaborators.
package graphtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

const DefaultQuantumSize = 128

// Context is a graph.Context that records every call.
type Context struct {
	IDValue         string
	SampleRateValue int

	ResumeErr          error
	RegisterErr        error
	NewStreamSourceErr error

	locker           sync.Mutex
	state            graph.State
	processors       map[string]graph.ProcessorDefinition
	registerCount    int
	resumeCount      int
	processorNodes   []*ProcessorNode
	streamSources    []*Node
	stateAfterResume graph.State
}

var _ graph.Context = (*Context)(nil)

func NewContext(id string, sampleRate int, state graph.State) *Context {
	return &Context{
		IDValue:          id,
		SampleRateValue:  sampleRate,
		state:            state,
		processors:       map[string]graph.ProcessorDefinition{},
		stateAfterResume: graph.StateRunning,
	}
}

func (c *Context) ID() string      { return c.IDValue }
func (c *Context) SampleRate() int { return c.SampleRateValue }

func (c *Context) State() graph.State {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.state
}

func (c *Context) SetState(state graph.State) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.state = state
}

// SetStateAfterResume defines the state Resume switches to; StateSuspended
// simulates a context that never comes up.
func (c *Context) SetStateAfterResume(state graph.State) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.stateAfterResume = state
}

func (c *Context) Resume(ctx context.Context) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.resumeCount++
	if c.ResumeErr != nil {
		return c.ResumeErr
	}
	if c.state == graph.StateClosed {
		return graph.ErrClosed
	}
	c.state = c.stateAfterResume
	return nil
}

func (c *Context) ResumeCount() int {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.resumeCount
}

func (c *Context) RegisterProcessor(ctx context.Context, def graph.ProcessorDefinition) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.registerCount++
	if c.RegisterErr != nil {
		return c.RegisterErr
	}
	if _, ok := c.processors[def.Name]; ok {
		return fmt.Errorf("processor '%s' is already registered", def.Name)
	}
	c.processors[def.Name] = def
	return nil
}

func (c *Context) RegisterCount() int {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.registerCount
}

func (c *Context) NewProcessorNode(ctx context.Context, name string, port graph.Port) (graph.Node, error) {
	c.locker.Lock()
	defer c.locker.Unlock()
	def, ok := c.processors[name]
	if !ok {
		return nil, fmt.Errorf("processor '%s' is not registered", name)
	}
	n := &ProcessorNode{
		Name:      name,
		Processor: def.New(port),
	}
	c.processorNodes = append(c.processorNodes, n)
	return n, nil
}

func (c *Context) ProcessorNodes() []*ProcessorNode {
	c.locker.Lock()
	defer c.locker.Unlock()
	return append([]*ProcessorNode(nil), c.processorNodes...)
}

func (c *Context) NewStreamSource(ctx context.Context, stream graph.MediaStream) (graph.Node, error) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.NewStreamSourceErr != nil {
		return nil, c.NewStreamSourceErr
	}
	n := &Node{}
	if s, ok := stream.(*MediaStream); ok {
		n.Samples = s.Samples
	}
	c.streamSources = append(c.streamSources, n)
	return n, nil
}

func (c *Context) StreamSources() []*Node {
	c.locker.Lock()
	defer c.locker.Unlock()
	return append([]*Node(nil), c.streamSources...)
}
