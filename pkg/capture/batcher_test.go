package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

type recordingPort struct {
	accept  bool
	batches []graph.Batch
}

func (p *recordingPort) Post(b graph.Batch) bool {
	if !p.accept {
		return false
	}
	p.batches = append(p.batches, b)
	return true
}

func ramp(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

func TestBatcher(t *testing.T) {
	t.Run("batches_across_quanta", func(t *testing.T) {
		port := &recordingPort{accept: true}
		b := NewBatcher(8, port)

		for i := 0; i < 5; i++ {
			assert.True(t, b.Process([][][]float32{{ramp(i*4, 4)}}))
		}

		require.Len(t, port.batches, 2)
		assert.Equal(t, uint64(0), port.batches[0].Seq)
		assert.Equal(t, ramp(0, 8), port.batches[0].Samples)
		assert.Equal(t, uint64(1), port.batches[1].Seq)
		assert.Equal(t, ramp(8, 8), port.batches[1].Samples)
	})

	t.Run("quantum_larger_than_batch", func(t *testing.T) {
		port := &recordingPort{accept: true}
		b := NewBatcher(4, port)
		b.Process([][][]float32{{ramp(0, 10)}})
		require.Len(t, port.batches, 2)
		assert.Equal(t, ramp(4, 4), port.batches[1].Samples)
	})

	t.Run("emitted_batches_are_not_reused", func(t *testing.T) {
		port := &recordingPort{accept: true}
		b := NewBatcher(2, port)
		b.Process([][][]float32{{{1, 2, 3, 4}}})
		require.Len(t, port.batches, 2)
		assert.Equal(t, []float32{1, 2}, port.batches[0].Samples)
		assert.Equal(t, []float32{3, 4}, port.batches[1].Samples)
	})

	t.Run("only_first_channel", func(t *testing.T) {
		port := &recordingPort{accept: true}
		b := NewBatcher(2, port)
		b.Process([][][]float32{{{1, 2}, {9, 9}}, {{7, 7}}})
		require.Len(t, port.batches, 1)
		assert.Equal(t, []float32{1, 2}, port.batches[0].Samples)
	})

	t.Run("no_channel_data", func(t *testing.T) {
		port := &recordingPort{accept: true}
		b := NewBatcher(2, port)
		assert.True(t, b.Process(nil))
		assert.True(t, b.Process([][][]float32{}))
		assert.True(t, b.Process([][][]float32{{}}))
		assert.Empty(t, port.batches)
	})

	t.Run("full_port", func(t *testing.T) {
		port := &recordingPort{accept: false}
		b := NewBatcher(2, port)
		b.Process([][][]float32{{ramp(0, 6)}})
		assert.Equal(t, uint64(3), b.Dropped())

		port.accept = true
		b.Process([][][]float32{{ramp(6, 2)}})
		require.Len(t, port.batches, 1)
		assert.Equal(t, uint64(3), port.batches[0].Seq)
	})
}

func TestProcessorDefinition(t *testing.T) {
	def := NewProcessorDefinition(DefaultBatchSize)
	assert.Equal(t, ProcessorName, def.Name)
	assert.IsType(t, &Batcher{}, def.New(graph.NewChanPort(1)))

	assert.Equal(t, ProcessorName+"-512", NewProcessorDefinition(512).Name)
}

func BenchmarkBatcher(b *testing.B) {
	port := graph.NewChanPort(1)
	batcher := NewBatcher(DefaultBatchSize, port)
	quantum := [][][]float32{{make([]float32, 128)}}
	for i := 0; i < b.N; i++ {
		batcher.Process(quantum)
		select {
		case <-port:
		default:
		}
	}
}
