package portaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
	"github.com/xaionaro-go/observability"
)

type PlayerPCM struct{}

var _ types.PlayerPCM = (*PlayerPCM)(nil)

func NewPlayerPCM() (*PlayerPCM, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize portaudio: %w", err)
	}
	return &PlayerPCM{}, nil
}

func (*PlayerPCM) Close() error {
	return portaudio.Terminate()
}

func (*PlayerPCM) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return fmt.Errorf("unable to get the default output device: %w", err)
	}
	logger.Debugf(ctx, "device info: %#+v", info)
	return nil
}

type PlayPCMStream struct {
	*stream
	Reader io.Reader
}

var _ types.PlayStream = (*PlayPCMStream)(nil)

func (*PlayerPCM) PlayPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (_ types.PlayStream, _err error) {
	logger.Debugf(ctx, "PlayPCM(%d, %d, %s, %v)", sampleRate, channels, format, bufferSize)
	defer func() {
		logger.Debugf(ctx, "/PlayPCM(%d, %d, %s, %v): %v", sampleRate, channels, format, bufferSize, _err)
	}()

	st, err := openStream(ctx, directionOutput, sampleRate, channels, format, bufferSize)
	if err != nil {
		return nil, err
	}
	s := &PlayPCMStream{
		stream: st,
		Reader: reader,
	}
	if err := s.PortAudioStream.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("unable to start the stream: %w", err)
	}

	ctx, s.CancelFunc = context.WithCancel(ctx)
	s.WaitGroup.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer s.WaitGroup.Done()
		defer s.CancelFunc()
		err := s.loop(ctx)
		logger.Debugf(ctx, "the playback loop ended: %v", err)
	})
	return s, nil
}

func (s *PlayPCMStream) loop(
	ctx context.Context,
) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := io.ReadFull(s.Reader, s.Buffer)
		if n < len(s.Buffer) {
			clear(s.Buffer[n:])
		}
		if n > 0 {
			logger.Tracef(ctx, "Write")
			werr := s.PortAudioStream.Write()
			logger.Tracef(ctx, "/Write: %v", werr)
			if werr != nil && werr != portaudio.OutputUnderflowed {
				return fmt.Errorf("unable to write: %w", werr)
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("unable to read: %w", err)
		}
	}
}
