package capture

import (
	"fmt"

	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

const (
	// ProcessorName is the stable identifier of the capture processor.
	// The batch size is appended to it, see ProcessorNameForBatchSize.
	ProcessorName = "lyricsync-capture-batcher"

	DefaultBatchSize = 2048
)

// Batcher accumulates the first channel of the first input into batches
// of a fixed size and posts every full batch to the port.
type Batcher struct {
	port    graph.Port
	buf     []float32
	idx     int
	seq     uint64
	dropped uint64
}

var _ graph.Processor = (*Batcher)(nil)

func NewBatcher(batchSize int, port graph.Port) *Batcher {
	return &Batcher{
		port: port,
		buf:  make([]float32, batchSize),
	}
}

// Process is called on the real-time thread and never blocks.
func (b *Batcher) Process(inputs [][][]float32) bool {
	if len(inputs) == 0 || len(inputs[0]) == 0 {
		return true
	}
	ch := inputs[0][0]
	for len(ch) > 0 {
		n := copy(b.buf[b.idx:], ch)
		b.idx += n
		ch = ch[n:]
		if b.idx < len(b.buf) {
			continue
		}
		if !b.port.Post(graph.Batch{Seq: b.seq, Samples: b.buf}) {
			b.dropped++
		}
		b.seq++
		b.buf = make([]float32, len(b.buf))
		b.idx = 0
	}
	return true
}

// Dropped returns the amount of batches the port did not accept. It must
// not be called concurrently with Process.
func (b *Batcher) Dropped() uint64 {
	return b.dropped
}

func ProcessorNameForBatchSize(batchSize int) string {
	if batchSize == DefaultBatchSize {
		return ProcessorName
	}
	return fmt.Sprintf("%s-%d", ProcessorName, batchSize)
}

// NewProcessorDefinition returns the definition to be registered in a
// graph.Context to instantiate Batchers by name.
func NewProcessorDefinition(batchSize int) graph.ProcessorDefinition {
	return graph.ProcessorDefinition{
		Name: ProcessorNameForBatchSize(batchSize),
		New: func(port graph.Port) graph.Processor {
			return NewBatcher(batchSize, port)
		},
	}
}
