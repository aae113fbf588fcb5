package noisesuppressionstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/noisesuppression"
	"github.com/xaionaro-go/observability"
)

const (
	bytesPerSample = 4

	// defaultChunkSize is used for implementations without a preferred chunk size.
	defaultChunkSize = 480
)

// NoiseSuppressionStream is a reader of denoised mono float32le audio
// read from another reader of mono float32le audio.
type NoiseSuppressionStream struct {
	noisesuppression.NoiseSuppression

	inputBufferLocker sync.Mutex
	inputBuffer       *circular.Buffer
	inputBufferSize   int
	inputPending      int
	inputEOF          bool

	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	outputBufferSize   int
	outputPending      int
	outputEOF          bool

	resultErrorLocker sync.Mutex
	resultError       error

	input      io.Reader
	readCtx    context.Context
	cancelFunc context.CancelFunc
	waitGroup  sync.WaitGroup

	readProgressedCh                   chan struct{}
	noiseSuppressionInputProgressedCh  chan struct{}
	noiseSuppressionOutputProgressedCh chan struct{}
	outputProgressedCh                 chan struct{}
}

var _ io.ReadCloser = (*NoiseSuppressionStream)(nil)

func NewNoiseSuppressionStream(
	ctx context.Context,
	input io.Reader,
	noiseSuppression noisesuppression.NoiseSuppression,
	inputBufferSize uint,
	outputBufferSize uint,
) (*NoiseSuppressionStream, error) {
	chunkBytes := uint(chunkSize(noiseSuppression) * bytesPerSample)
	if inputBufferSize < chunkBytes {
		return nil, fmt.Errorf("the input buffer is smaller than one chunk: %d < %d", inputBufferSize, chunkBytes)
	}
	if outputBufferSize < chunkBytes {
		return nil, fmt.Errorf("the output buffer is smaller than one chunk: %d < %d", outputBufferSize, chunkBytes)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &NoiseSuppressionStream{
		NoiseSuppression: noiseSuppression,
		inputBuffer:      circular.NewBuffer(int(inputBufferSize)),
		inputBufferSize:  int(inputBufferSize),
		outputBuffer:     circular.NewBuffer(int(outputBufferSize)),
		outputBufferSize: int(outputBufferSize),
		input:            input,
		readCtx:          ctx,
		cancelFunc:       cancelFunc,

		readProgressedCh:                   make(chan struct{}),
		noiseSuppressionInputProgressedCh:  make(chan struct{}),
		noiseSuppressionOutputProgressedCh: make(chan struct{}),
		outputProgressedCh:                 make(chan struct{}),
	}
	s.waitGroup.Add(2)
	observability.Go(ctx, func(ctx context.Context) {
		defer s.waitGroup.Done()
		err := s.readerLoop(ctx, input)
		if err != nil {
			s.setResultError(fmt.Errorf("got an error from the reader loop: %w", err))
			cancelFunc()
		}
	})
	observability.Go(ctx, func(ctx context.Context) {
		defer s.waitGroup.Done()
		err := s.noiseSuppressionLoop(ctx)
		if err != nil {
			s.setResultError(fmt.Errorf("got an error from the noise suppressor loop: %w", err))
			cancelFunc()
		}
	})
	return s, nil
}

func chunkSize(ns noisesuppression.NoiseSuppression) int {
	if size := ns.ChunkSize(); size > 0 {
		return size
	}
	return defaultChunkSize
}

func (s *NoiseSuppressionStream) setResultError(err error) {
	s.resultErrorLocker.Lock()
	defer s.resultErrorLocker.Unlock()
	if s.resultError == nil {
		s.resultError = err
	}
}

func (s *NoiseSuppressionStream) getResultError() error {
	s.resultErrorLocker.Lock()
	defer s.resultErrorLocker.Unlock()
	return s.resultError
}

// signal closes *ch and replaces it with a new channel; the caller must
// hold the lock guarding *ch.
func signal(ch *chan struct{}) {
	oldCh := *ch
	*ch = make(chan struct{})
	close(oldCh)
}

func (s *NoiseSuppressionStream) readerLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop %v", _err) }()

	readBuf := make([]byte, min(65536, s.inputBufferSize))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := input.Read(readBuf)
		logger.Tracef(ctx, "readerLoop: Read(): %v %v", n, err)
		if n < 0 {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if n > 0 {
			if err := s.pushInput(ctx, readBuf[:n]); err != nil {
				return err
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe):
			s.inputBufferLocker.Lock()
			s.inputEOF = true
			signal(&s.readProgressedCh)
			s.inputBufferLocker.Unlock()
			return nil
		default:
			return fmt.Errorf("unable to read the backend: %w", err)
		}
	}
}

func (s *NoiseSuppressionStream) pushInput(ctx context.Context, data []byte) error {
	s.inputBufferLocker.Lock()
	defer s.inputBufferLocker.Unlock()
	for len(data) > 0 {
		free := s.inputBufferSize - s.inputPending
		if free <= 0 {
			if !s.waitForNoiseSuppressionInputProgressed(ctx) {
				return nil
			}
			continue
		}
		w, err := s.inputBuffer.Write(data[:min(free, len(data))])
		if err != nil && !errors.Is(err, circular.ErrNoSpace) {
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		s.inputPending += w
		data = data[w:]
		if w > 0 {
			signal(&s.readProgressedCh)
		}
		if err != nil && !s.waitForNoiseSuppressionInputProgressed(ctx) {
			return nil
		}
	}
	return nil
}

// waitForNoiseSuppressionInputProgressed returns false if ctx is done;
// the caller must hold inputBufferLocker.
func (s *NoiseSuppressionStream) waitForNoiseSuppressionInputProgressed(ctx context.Context) bool {
	ch := s.noiseSuppressionInputProgressedCh
	s.inputBufferLocker.Unlock()
	defer s.inputBufferLocker.Lock()
	select {
	case <-ctx.Done():
		return false
	case <-ch:
		return true
	}
}

// pullInput fills buf from the input buffer; it returns less than len(buf)
// bytes only at the end of the input or if ctx is done.
func (s *NoiseSuppressionStream) pullInput(ctx context.Context, buf []byte) (int, error) {
	receivedCount := 0
	for {
		var waitCh chan struct{}
		var eof bool
		if err := func() error {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			n, err := s.inputBuffer.Read(buf[receivedCount:])
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("unable to read from the circular buffer: %w", err)
			}
			receivedCount += n
			s.inputPending -= n
			if n > 0 {
				signal(&s.noiseSuppressionInputProgressedCh)
			}
			waitCh = s.readProgressedCh
			eof = s.inputEOF && s.inputPending == 0
			return nil
		}(); err != nil {
			return receivedCount, err
		}
		if receivedCount >= len(buf) {
			return receivedCount, nil
		}
		if eof {
			return receivedCount, io.EOF
		}
		select {
		case <-ctx.Done():
			return receivedCount, ctx.Err()
		case <-waitCh:
		}
	}
}

func (s *NoiseSuppressionStream) noiseSuppressionLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "noiseSuppressionLoop")
	defer func() { logger.Tracef(ctx, "/noiseSuppressionLoop: %v", _err) }()

	frameSize := chunkSize(s.NoiseSuppression)
	logger.Debugf(ctx, "frameSize: %d", frameSize)

	inputBuf := make([]byte, frameSize*bytesPerSample)
	inputSamples := make([]float32, 0, frameSize)
	outputSamples := make([]float32, frameSize)
	outputBuf := make([]byte, 0, frameSize*bytesPerSample)
	for {
		n, err := s.pullInput(ctx, inputBuf)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
		samples := n / bytesPerSample
		if samples > 0 {
			// a trailing incomplete chunk is padded with silence
			clear(inputBuf[samples*bytesPerSample:])
			inputSamples = audio.Float32LEToSamples(inputSamples[:0], inputBuf)
			if _, err := s.NoiseSuppression.SuppressNoise(ctx, inputSamples, outputSamples); err != nil {
				return fmt.Errorf("unable to noise-suppress: %w", err)
			}
			outputBuf = audio.SamplesToFloat32LE(outputBuf[:0], outputSamples[:samples])
			if !s.pushOutput(ctx, outputBuf) {
				return nil
			}
		}
		if err != nil {
			s.outputBufferLocker.Lock()
			s.outputEOF = true
			signal(&s.noiseSuppressionOutputProgressedCh)
			s.outputBufferLocker.Unlock()
			return nil
		}
	}
}

// pushOutput returns false if ctx is done before everything is written.
func (s *NoiseSuppressionStream) pushOutput(ctx context.Context, data []byte) bool {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for len(data) > 0 {
		free := s.outputBufferSize - s.outputPending
		var w int
		var err error
		if free > 0 {
			w, err = s.outputBuffer.Write(data[:min(free, len(data))])
			if err != nil && !errors.Is(err, circular.ErrNoSpace) {
				s.setResultError(fmt.Errorf("unable to write to the circular buffer: %w", err))
				return false
			}
		}
		s.outputPending += w
		data = data[w:]
		if w > 0 {
			signal(&s.noiseSuppressionOutputProgressedCh)
			continue
		}
		if !s.waitForOutput(ctx) {
			return false
		}
	}
	return true
}

// waitForOutput waits until Read consumes something; the caller must hold
// outputBufferLocker.
func (s *NoiseSuppressionStream) waitForOutput(ctx context.Context) bool {
	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
		return false
	case <-ch:
		return true
	}
}

// Read returns denoised float32le samples; io.EOF is returned after the
// input ended and everything was read.
func (s *NoiseSuppressionStream) Read(pcm []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(pcm))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(pcm), _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		n, err := s.outputBuffer.Read(pcm)
		s.outputPending -= n
		if n > 0 {
			signal(&s.outputProgressedCh)
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return n, err
		}
		if s.outputEOF {
			return 0, io.EOF
		}
		if err := s.getResultError(); err != nil {
			return 0, err
		}
		if !s.waitForNoiseSuppressionOutputProgressed(s.readCtx) {
			if err := s.getResultError(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
	}
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionOutputProgressed(ctx context.Context) bool {
	ch := s.noiseSuppressionOutputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
		return false
	case <-ch:
		return true
	}
}

// Close stops the processing and closes the input if it is closable.
// The noise suppressor itself is not closed.
func (s *NoiseSuppressionStream) Close() error {
	s.cancelFunc()
	var err error
	if closer, ok := s.input.(io.Closer); ok {
		err = closer.Close()
	}
	s.waitGroup.Wait()
	return err
}
