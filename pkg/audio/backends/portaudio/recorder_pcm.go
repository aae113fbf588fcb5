package portaudio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
	"github.com/xaionaro-go/observability"
)

type RecorderPCM struct{}

var _ types.RecorderPCM = (*RecorderPCM)(nil)

func NewRecorderPCM() (*RecorderPCM, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize portaudio: %w", err)
	}
	return &RecorderPCM{}, nil
}

func (*RecorderPCM) Close() error {
	return portaudio.Terminate()
}

func (*RecorderPCM) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("unable to get the default input device: %w", err)
	}
	logger.Debugf(ctx, "device info: %#+v", info)

	if devices, err := portaudio.Devices(); err == nil {
		for idx, device := range devices {
			logger.Tracef(ctx, "devices[%d]: %#+v", idx, device)
		}
	}
	return nil
}

type RecordPCMStream struct {
	*stream
	Writer io.Writer
}

var _ types.RecordStream = (*RecordPCMStream)(nil)

func (*RecorderPCM) RecordPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	writer io.Writer,
) (_ types.RecordStream, _err error) {
	logger.Debugf(ctx, "RecordPCM(%d, %d, %s)", sampleRate, channels, format)
	defer func() { logger.Debugf(ctx, "/RecordPCM(%d, %d, %s): %v", sampleRate, channels, format, _err) }()

	st, err := openStream(ctx, directionInput, sampleRate, channels, format, RecordBufferSize)
	if err != nil {
		return nil, err
	}
	s := &RecordPCMStream{
		stream: st,
		Writer: writer,
	}
	if err := s.PortAudioStream.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("unable to start the stream: %w", err)
	}

	ctx, s.CancelFunc = context.WithCancel(ctx)
	s.WaitGroup.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer s.WaitGroup.Done()
		<-ctx.Done()
		s.Close()
	})
	s.WaitGroup.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer s.WaitGroup.Done()
		defer s.CancelFunc()
		err := s.loop(ctx)
		logger.Debugf(ctx, "the recording loop ended: %v", err)
	})
	return s, nil
}

func (s *RecordPCMStream) loop(
	ctx context.Context,
) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Tracef(ctx, "Read")
		err := s.PortAudioStream.Read()
		logger.Tracef(ctx, "/Read: %v", err)
		if err != nil && err != portaudio.InputOverflowed {
			return fmt.Errorf("unable to read: %w", err)
		}

		n, err := s.Writer.Write(s.Buffer)
		if err != nil {
			return fmt.Errorf("unable to write: %w", err)
		}
		if n != len(s.Buffer) {
			return fmt.Errorf("invalid write length: %d != %d", n, len(s.Buffer))
		}
	}
}
