package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/audio/resampler"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppression"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppression/implementations/rnnoise"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppressionstream"
	"github.com/xaionaro-go/observability"
)

const noiseSuppressionBufferSize = 1024 * 1024

// Microphone records mono audio with the given recorder.
type Microphone struct {
	Context  *Context
	Recorder audio.RecorderPCM

	// NewNoiseSuppression is used if the noise suppression is requested.
	NewNoiseSuppression func() (noisesuppression.NoiseSuppression, error)
}

var _ graph.Microphone = (*Microphone)(nil)

func NewMicrophone(
	graphCtx *Context,
	recorder audio.RecorderPCM,
) *Microphone {
	return &Microphone{
		Context:  graphCtx,
		Recorder: recorder,
		NewNoiseSuppression: func() (noisesuppression.NoiseSuppression, error) {
			ns, err := rnnoise.New()
			if err != nil {
				return nil, err
			}
			return ns, nil
		},
	}
}

func (m *Microphone) Acquire(
	ctx context.Context,
	constraints graph.Constraints,
) (_ graph.MediaStream, _err error) {
	logger.Debugf(ctx, "Acquire(%#+v)", constraints)
	defer func() { logger.Debugf(ctx, "/Acquire(%#+v): %v", constraints, _err) }()

	if m.Context.State() == graph.StateClosed {
		return nil, graph.ErrClosed
	}
	if constraints.EchoCancellation {
		logger.Warnf(ctx, "echo cancellation is not supported by the local audio context, ignoring")
	}
	if constraints.AutoGainControl {
		logger.Warnf(ctx, "automatic gain control is not supported by the local audio context, ignoring")
	}
	if err := m.Recorder.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrDeviceUnavailable, err)
	}

	// the stream lives until Stop, not until the acquisition deadline
	streamCtx, cancelFn := context.WithCancel(context.WithoutCancel(ctx))

	s := &MicStream{
		cancelFunc: cancelFn,
	}
	pipeReader, pipeWriter := io.Pipe()
	s.pipeWriter = pipeWriter
	s.writer = datacounter.NewWriterCounter(pipeWriter)
	s.reader = pipeReader
	recordRate := m.Context.sampleRate

	if constraints.NoiseSuppression {
		ns, err := m.newNoiseSuppression()
		if err != nil {
			logger.Warnf(ctx, "unable to initialize the noise suppression, continuing without it: %v", err)
		} else {
			nsStream, err := noisesuppressionstream.NewNoiseSuppressionStream(
				streamCtx,
				pipeReader,
				ns,
				noiseSuppressionBufferSize,
				noiseSuppressionBufferSize,
			)
			if err != nil {
				cancelFn()
				_ = ns.Close()
				return nil, fmt.Errorf("unable to initialize the noise suppression stream: %w", err)
			}
			s.noiseSuppression = ns
			s.reader = nsStream
			recordRate = ns.SampleRate()
		}
	}

	conv, err := newConverter(resampler.Format{
		Channels:   1,
		SampleRate: recordRate,
		PCMFormat:  audio.PCMFormatFloat32LE,
	}, m.Context.sampleRate)
	if err != nil {
		s.Stop()
		return nil, err
	}
	s.converter = conv

	recordStream, err := m.Recorder.RecordPCM(streamCtx, recordRate, 1, audio.PCMFormatFloat32LE, s.writer)
	if err != nil {
		s.Stop()
		return nil, fmt.Errorf("%w: unable to start recording: %w", graph.ErrDeviceUnavailable, err)
	}
	s.recordStream = recordStream
	s.node = m.Context.newSourceNode("microphone")

	s.waitGroup.Add(1)
	observability.Go(streamCtx, func(ctx context.Context) {
		defer s.waitGroup.Done()
		s.pumpLoop(ctx)
	})
	return s, nil
}

func (m *Microphone) newNoiseSuppression() (noisesuppression.NoiseSuppression, error) {
	if m.NewNoiseSuppression == nil {
		return nil, fmt.Errorf("no noise suppression is configured")
	}
	return m.NewNoiseSuppression()
}

// MicStream is a running recording delivered to the node returned by
// Context.NewStreamSource.
type MicStream struct {
	node             *sourceNode
	recordStream     audio.RecordStream
	pipeWriter       *io.PipeWriter
	writer           *datacounter.WriterCounter
	reader           io.Reader
	converter        *converter
	noiseSuppression noisesuppression.NoiseSuppression
	cancelFunc       context.CancelFunc
	waitGroup        sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

var _ graph.MediaStream = (*MicStream)(nil)

// Count returns the amount of bytes recorded so far.
func (s *MicStream) Count() uint64 {
	return s.writer.Count()
}

func (s *MicStream) pumpLoop(ctx context.Context) {
	logger.Tracef(ctx, "pumpLoop")
	defer func() { logger.Tracef(ctx, "/pumpLoop") }()

	buf := make([]byte, QuantumSize*4*8)
	for {
		n, err := s.reader.Read(buf)
		if n > 0 {
			samples, convErr := s.converter.convert(buf[:n])
			if convErr != nil {
				logger.Errorf(ctx, "unable to convert the microphone audio: %v", convErr)
			}
			s.node.push(samples)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.Errorf(ctx, "unable to read the microphone audio: %v", err)
			}
			return
		}
	}
}

// Stop ends the recording and releases the device; it is safe to call
// it more than once.
func (s *MicStream) Stop() error {
	s.stopOnce.Do(func() {
		var mErr *multierror.Error
		if s.recordStream != nil {
			if err := s.recordStream.Close(); err != nil {
				mErr = multierror.Append(mErr, fmt.Errorf("unable to close the record stream: %w", err))
			}
		}
		s.pipeWriter.Close()
		if closer, ok := s.reader.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				mErr = multierror.Append(mErr, fmt.Errorf("unable to close the reader: %w", err))
			}
		}
		s.cancelFunc()
		s.waitGroup.Wait()
		if s.noiseSuppression != nil {
			if err := s.noiseSuppression.Close(); err != nil {
				mErr = multierror.Append(mErr, fmt.Errorf("unable to close the noise suppression: %w", err))
			}
		}
		if s.node != nil {
			s.node.disconnectAll()
			s.node.graphCtx.forgetSourceNode(s.node)
		}
		s.stopErr = mErr.ErrorOrNil()
	})
	return s.stopErr
}
