package pulseaudio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// pulseStream is what PlaybackStream and RecordStream have in common.
type pulseStream interface {
	Stop()
	Close()
	Error() error
}

// closer stops and closes a stream once. The client is shared by all the
// streams of a PlayerPCM/RecorderPCM, so it is left open.
type closer struct {
	once sync.Once
	err  error
}

func (c *closer) close(stream pulseStream) error {
	c.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.err = fmt.Errorf("got a panic: %v", r)
			}
		}()
		stream.Stop()
		stream.Close()
	})
	return c.err
}

type PlayStream struct {
	*pulse.PlaybackStream
	closer closer
}

func newPlayStream(pulseStream *pulse.PlaybackStream) *PlayStream {
	return &PlayStream{
		PlaybackStream: pulseStream,
	}
}

func (stream *PlayStream) Drain() error {
	stream.PlaybackStream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("an error occurred during playback: %w", err)
	}
	if stream.Underflow() {
		return fmt.Errorf("underflow")
	}
	return nil
}

func (stream *PlayStream) Close() error {
	return stream.closer.close(stream.PlaybackStream)
}

type RecordStream struct {
	*pulse.RecordStream
	closer closer
}

func newRecordStream(pulseStream *pulse.RecordStream) *RecordStream {
	return &RecordStream{
		RecordStream: pulseStream,
	}
}

func (stream *RecordStream) Drain() error {
	if err := stream.Error(); err != nil {
		return fmt.Errorf("an error occurred during recording: %w", err)
	}
	return nil
}

func (stream *RecordStream) Close() error {
	return stream.closer.close(stream.RecordStream)
}
