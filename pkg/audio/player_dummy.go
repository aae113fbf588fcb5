package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

// PlayerPCMDummy plays into nowhere: the reader is consumed at the
// real-time pace and the data is discarded. It is used when no real
// backend is available, so that whatever taps the played audio still
// sees it flowing.
type PlayerPCMDummy struct{}

var _ PlayerPCM = PlayerPCMDummy{}

func (PlayerPCMDummy) Close() error {
	return nil
}

func (PlayerPCMDummy) Ping(context.Context) error {
	return nil
}

func (PlayerPCMDummy) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (PlayStream, error) {
	chunkSize := bytesForDuration(sampleRate, channels, format, bufferSize)
	if chunkSize <= 0 {
		return nil, fmt.Errorf("unable to play %d Hz, %d channels of %s with a %v buffer", sampleRate, channels, format, bufferSize)
	}

	ctx, cancelFn := context.WithCancel(ctx)
	s := &streamDummy{
		cancelFunc: cancelFn,
		done:       make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		defer close(s.done)
		s.err = discardPaced(ctx, reader, chunkSize, bufferSize)
		logger.Debugf(ctx, "the dummy playback ended: %v", s.err)
	})
	return s, nil
}

func bytesForDuration(
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	duration time.Duration,
) int {
	frames := int(time.Duration(sampleRate) * duration / time.Second)
	return frames * int(channels) * int(format.Size())
}

func discardPaced(
	ctx context.Context,
	reader io.Reader,
	chunkSize int,
	interval time.Duration,
) error {
	buf := make([]byte, chunkSize)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		_, err := io.ReadFull(reader, buf)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("unable to read: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

type streamDummy struct {
	closeOnce  sync.Once
	cancelFunc context.CancelFunc
	done       chan struct{}
	err        error
}

var _ PlayStream = (*streamDummy)(nil)

// Drain waits until the whole reader is consumed.
func (s *streamDummy) Drain() error {
	<-s.done
	return s.err
}

func (s *streamDummy) Close() error {
	s.closeOnce.Do(s.cancelFunc)
	<-s.done
	return nil
}

// recordStreamDummy produces silence until closed.
type recordStreamDummy struct {
	streamDummy
}

var _ RecordStream = (*recordStreamDummy)(nil)
