package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/audio/resampler"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppression"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingProcessor keeps everything it receives.
type recordingProcessor struct {
	locker  sync.Mutex
	samples []float32
	quanta  int
	limit   int
}

func (p *recordingProcessor) Process(inputs [][][]float32) bool {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.quanta++
	p.samples = append(p.samples, inputs[0][0]...)
	return p.limit == 0 || p.quanta < p.limit
}

func (p *recordingProcessor) Samples() []float32 {
	p.locker.Lock()
	defer p.locker.Unlock()
	return append([]float32(nil), p.samples...)
}

func newRecordingNode(t *testing.T, graphCtx *Context, p *recordingProcessor) graph.Node {
	ctx := context.Background()
	name := "recorder-" + t.Name()
	require.NoError(t, graphCtx.RegisterProcessor(ctx, graph.ProcessorDefinition{
		Name: name,
		New:  func(graph.Port) graph.Processor { return p },
	}))
	node, err := graphCtx.NewProcessorNode(ctx, name, graph.NewChanPort(1))
	require.NoError(t, err)
	return node
}

func ramp(count int) []float32 {
	out := make([]float32, count)
	for i := range out {
		out[i] = float32(i%1000) / 1000
	}
	return out
}

func TestContextLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewContext(0)
	assert.Equal(t, 48000, c.SampleRate())
	assert.Equal(t, graph.StateSuspended, c.State())
	assert.NotEqual(t, c.ID(), NewContext(0).ID())

	require.NoError(t, c.Resume(ctx))
	assert.Equal(t, graph.StateRunning, c.State())
	require.NoError(t, c.Suspend(ctx))
	assert.Equal(t, graph.StateSuspended, c.State())

	def := graph.ProcessorDefinition{
		Name: "p",
		New:  func(graph.Port) graph.Processor { return &recordingProcessor{} },
	}
	require.NoError(t, c.RegisterProcessor(ctx, def))
	assert.Error(t, c.RegisterProcessor(ctx, def))
	_, err := c.NewProcessorNode(ctx, "unknown", graph.NewChanPort(1))
	assert.Error(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, graph.StateClosed, c.State())
	assert.ErrorIs(t, c.Resume(ctx), graph.ErrClosed)
	_, err = c.NewProcessorNode(ctx, "p", graph.NewChanPort(1))
	assert.ErrorIs(t, err, graph.ErrClosed)
}

func TestProgramTap(t *testing.T) {
	ctx := context.Background()

	t.Run("first_channel_in_quanta", func(t *testing.T) {
		c := NewContext(48000)
		require.NoError(t, c.Resume(ctx))

		left := ramp(1000)
		var pcm []byte
		for _, v := range left {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v*32767)))
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(-0.5*32767)))
		}
		tap, err := c.NewProgramTap(ctx, bytes.NewReader(pcm), resampler.Format{
			Channels:   2,
			SampleRate: 48000,
			PCMFormat:  audio.PCMFormatS16LE,
		})
		require.NoError(t, err)
		defer tap.Close()

		p := &recordingProcessor{}
		node := newRecordingNode(t, c, p)
		require.NoError(t, tap.Node().Connect(node))

		played, err := io.ReadAll(tap)
		require.NoError(t, err)
		assert.Equal(t, pcm, played)
		assert.Equal(t, uint64(len(pcm)), tap.Count())

		got := p.Samples()
		require.Len(t, got, 1000/QuantumSize*QuantumSize)
		for i, v := range got {
			assert.InDelta(t, left[i], v, 1e-4)
		}

		require.NoError(t, tap.Node().Disconnect(node))
		assert.ErrorIs(t, tap.Node().Disconnect(node), graph.ErrNotConnected)
	})

	t.Run("suspended_drops", func(t *testing.T) {
		c := NewContext(48000)
		tap, err := c.NewProgramTap(ctx, bytes.NewReader(audio.SamplesToFloat32LE(nil, ramp(1024))), resampler.Format{
			Channels:   1,
			SampleRate: 48000,
			PCMFormat:  audio.PCMFormatFloat32LE,
		})
		require.NoError(t, err)
		defer tap.Close()

		p := &recordingProcessor{}
		require.NoError(t, tap.Node().Connect(newRecordingNode(t, c, p)))
		_, err = io.ReadAll(tap)
		require.NoError(t, err)
		assert.Empty(t, p.Samples())
	})

	t.Run("processor_done", func(t *testing.T) {
		c := NewContext(48000)
		require.NoError(t, c.Resume(ctx))
		tap, err := c.NewProgramTap(ctx, bytes.NewReader(audio.SamplesToFloat32LE(nil, ramp(4096))), resampler.Format{
			Channels:   1,
			SampleRate: 48000,
			PCMFormat:  audio.PCMFormatFloat32LE,
		})
		require.NoError(t, err)
		defer tap.Close()

		p := &recordingProcessor{limit: 2}
		require.NoError(t, tap.Node().Connect(newRecordingNode(t, c, p)))
		_, err = io.ReadAll(tap)
		require.NoError(t, err)
		assert.Len(t, p.Samples(), 2*QuantumSize)
		assert.Zero(t, tap.node.connections())
	})
}

// fakeRecorder writes Samples once Start is closed.
type fakeRecorder struct {
	Samples []float32
	PingErr error
	Start   chan struct{}

	locker    sync.Mutex
	rates     []audio.SampleRate
	closed    int
	waitGroup sync.WaitGroup
}

var _ audio.RecorderPCM = (*fakeRecorder)(nil)

func (r *fakeRecorder) Close() error { return nil }

func (r *fakeRecorder) Ping(context.Context) error { return r.PingErr }

type fakeRecordStream struct {
	recorder *fakeRecorder
	stopCh   chan struct{}
	once     sync.Once
}

func (s *fakeRecordStream) Close() error {
	s.once.Do(func() {
		close(s.stopCh)
		s.recorder.waitGroup.Wait()
		s.recorder.locker.Lock()
		s.recorder.closed++
		s.recorder.locker.Unlock()
	})
	return nil
}

func (r *fakeRecorder) RecordPCM(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	writer io.Writer,
) (audio.RecordStream, error) {
	if channels != 1 || format != audio.PCMFormatFloat32LE {
		return nil, errors.New("unexpected format")
	}
	r.locker.Lock()
	r.rates = append(r.rates, sampleRate)
	r.locker.Unlock()

	s := &fakeRecordStream{recorder: r, stopCh: make(chan struct{})}
	r.waitGroup.Add(1)
	go func() {
		defer r.waitGroup.Done()
		select {
		case <-r.Start:
		case <-s.stopCh:
			return
		}
		data := audio.SamplesToFloat32LE(nil, r.Samples)
		for len(data) > 0 {
			k := min(len(data), 480*4)
			if _, err := writer.Write(data[:k]); err != nil {
				return
			}
			data = data[k:]
		}
		<-s.stopCh
	}()
	return s, nil
}

func TestMicrophone(t *testing.T) {
	ctx := context.Background()

	for name, constraints := range map[string]graph.Constraints{
		"plain":             {},
		"noise_suppression": {NoiseSuppression: true, EchoCancellation: true},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewContext(48000)
			require.NoError(t, c.Resume(ctx))
			rec := &fakeRecorder{Samples: ramp(4800), Start: make(chan struct{})}
			mic := NewMicrophone(c, rec)
			mic.NewNoiseSuppression = func() (noisesuppression.NoiseSuppression, error) {
				return noisesuppression.NewDummy(48000, 480), nil
			}

			stream, err := mic.Acquire(ctx, constraints)
			require.NoError(t, err)
			node, err := c.NewStreamSource(ctx, stream)
			require.NoError(t, err)

			p := &recordingProcessor{}
			require.NoError(t, node.Connect(newRecordingNode(t, c, p)))
			close(rec.Start)

			expected := 4800 / QuantumSize * QuantumSize
			require.Eventually(t, func() bool {
				return len(p.Samples()) >= expected
			}, 5*time.Second, time.Millisecond)
			assert.Equal(t, ramp(4800)[:expected], p.Samples()[:expected])

			require.NoError(t, stream.Stop())
			require.NoError(t, stream.Stop())
			assert.Equal(t, 1, rec.closed)
			assert.Equal(t, uint64(4800*4), stream.(*MicStream).Count())
			assert.Equal(t, []audio.SampleRate{48000}, rec.rates)
			assert.Zero(t, node.(*sourceNode).connections())
		})
	}

	t.Run("unavailable", func(t *testing.T) {
		c := NewContext(48000)
		mic := NewMicrophone(c, &fakeRecorder{PingErr: errors.New("no device")})
		_, err := mic.Acquire(ctx, graph.Constraints{})
		assert.ErrorIs(t, err, graph.ErrDeviceUnavailable)
	})

	t.Run("foreign_stream", func(t *testing.T) {
		c := NewContext(48000)
		_, err := c.NewStreamSource(ctx, &MicStream{node: NewContext(48000).newSourceNode("x")})
		assert.Error(t, err)
	})
}
