package local

import (
	"fmt"
	"sync"

	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

type processorNode struct {
	name      string
	processor graph.Processor
}

var _ graph.Node = (*processorNode)(nil)

func (p *processorNode) Connect(dst graph.Node) error {
	return fmt.Errorf("processor '%s' has no outputs", p.name)
}

func (p *processorNode) Disconnect(dst graph.Node) error {
	return graph.ErrNotConnected
}

// sourceNode slices whatever is pushed into it into quanta of QuantumSize
// samples and hands them to the connected processors.
type sourceNode struct {
	name     string
	graphCtx *Context

	locker  sync.Mutex
	targets []*processorNode
	quantum []float32
	inputs  [][][]float32
}

var _ graph.Node = (*sourceNode)(nil)

func (n *sourceNode) Connect(dst graph.Node) error {
	p, ok := dst.(*processorNode)
	if !ok {
		return fmt.Errorf("unable to connect '%s' to %T: only processor nodes can be connected", n.name, dst)
	}
	if n.graphCtx.State() == graph.StateClosed {
		return graph.ErrClosed
	}
	n.locker.Lock()
	defer n.locker.Unlock()
	for _, target := range n.targets {
		if target == p {
			return nil
		}
	}
	n.targets = append(n.targets, p)
	return nil
}

func (n *sourceNode) Disconnect(dst graph.Node) error {
	n.locker.Lock()
	defer n.locker.Unlock()
	for idx, target := range n.targets {
		if target == dst {
			n.targets = append(n.targets[:idx], n.targets[idx+1:]...)
			return nil
		}
	}
	return graph.ErrNotConnected
}

func (n *sourceNode) disconnectAll() {
	n.locker.Lock()
	defer n.locker.Unlock()
	n.targets = nil
}

func (n *sourceNode) connections() int {
	n.locker.Lock()
	defer n.locker.Unlock()
	return len(n.targets)
}

// push is called by the producer of the node; the samples are dropped
// while the context is not running.
func (n *sourceNode) push(samples []float32) {
	if !n.graphCtx.isRunning() {
		return
	}
	n.locker.Lock()
	defer n.locker.Unlock()
	if len(n.targets) == 0 {
		n.quantum = n.quantum[:0]
		return
	}
	for len(samples) > 0 {
		k := min(QuantumSize-len(n.quantum), len(samples))
		n.quantum = append(n.quantum, samples[:k]...)
		samples = samples[k:]
		if len(n.quantum) == QuantumSize {
			n.render()
			n.quantum = n.quantum[:0]
		}
	}
}

func (n *sourceNode) render() {
	if n.inputs == nil {
		n.inputs = [][][]float32{{nil}}
	}
	n.inputs[0][0] = n.quantum
	kept := n.targets[:0]
	for _, target := range n.targets {
		if target.processor.Process(n.inputs) {
			kept = append(kept, target)
		}
	}
	clear(n.targets[len(kept):])
	n.targets = kept
}
