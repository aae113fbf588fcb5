package types

import (
	"context"
	"io"
	"time"
)

type PlayerPCM interface {
	io.Closer

	Ping(context.Context) error
	PlayPCM(
		ctx context.Context,
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
		bufferSize time.Duration,
		reader io.Reader,
	) (PlayStream, error)
}

type Stream interface {
	io.Closer
}

// PlayStream is a started playback; Drain blocks until everything
// given to the player is played.
type PlayStream interface {
	Stream
	Drain() error
}
