package graphtest

import (
	"sync"

	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

// Node is a source node. When connected to a ProcessorNode it pushes
// Samples into the processor in quanta of QuantumSize (DefaultQuantumSize
// if zero) from a separate goroutine, and then goes quiet.
type Node struct {
	Samples     []float32
	QuantumSize int
	ConnectErr  error

	locker          sync.Mutex
	connected       map[graph.Node]chan struct{}
	connectCount    int
	disconnectCount int
	wg              sync.WaitGroup
}

var _ graph.Node = (*Node)(nil)

func (n *Node) Connect(dst graph.Node) error {
	n.locker.Lock()
	defer n.locker.Unlock()
	n.connectCount++
	if n.ConnectErr != nil {
		return n.ConnectErr
	}
	if n.connected == nil {
		n.connected = map[graph.Node]chan struct{}{}
	}
	stopCh := make(chan struct{})
	n.connected[dst] = stopCh

	if p, ok := dst.(*ProcessorNode); ok && len(n.Samples) > 0 {
		quantum := n.QuantumSize
		if quantum <= 0 {
			quantum = DefaultQuantumSize
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.feed(p, quantum, stopCh)
		}()
	}
	return nil
}

func (n *Node) feed(
	p *ProcessorNode,
	quantum int,
	stopCh <-chan struct{},
) {
	samples := n.Samples
	for len(samples) > 0 {
		select {
		case <-stopCh:
			return
		default:
		}
		k := min(quantum, len(samples))
		if !p.process([][][]float32{{samples[:k]}}) {
			return
		}
		samples = samples[k:]
	}
}

func (n *Node) Disconnect(dst graph.Node) error {
	n.locker.Lock()
	n.disconnectCount++
	stopCh, ok := n.connected[dst]
	delete(n.connected, dst)
	n.locker.Unlock()
	if !ok {
		return graph.ErrNotConnected
	}
	close(stopCh)
	n.wg.Wait()
	return nil
}

func (n *Node) ConnectCount() int {
	n.locker.Lock()
	defer n.locker.Unlock()
	return n.connectCount
}

func (n *Node) DisconnectCount() int {
	n.locker.Lock()
	defer n.locker.Unlock()
	return n.disconnectCount
}

// Connections returns the amount of edges currently going out of the node.
func (n *Node) Connections() int {
	n.locker.Lock()
	defer n.locker.Unlock()
	return len(n.connected)
}

// ProcessorNode wraps a processor instantiated by Context.NewProcessorNode.
type ProcessorNode struct {
	Node
	Name      string
	Processor graph.Processor

	processLocker sync.Mutex
	quanta        int
}

var _ graph.Node = (*ProcessorNode)(nil)

func (p *ProcessorNode) process(inputs [][][]float32) bool {
	p.processLocker.Lock()
	defer p.processLocker.Unlock()
	p.quanta++
	return p.Processor.Process(inputs)
}

// Quanta returns how many times the processor was invoked.
func (p *ProcessorNode) Quanta() int {
	p.processLocker.Lock()
	defer p.processLocker.Unlock()
	return p.quanta
}
