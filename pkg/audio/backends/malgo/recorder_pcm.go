package malgo

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

type RecorderPCM struct {
	MalgoContext *malgo.AllocatedContext
}

var _ types.RecorderPCM = (*RecorderPCM)(nil)

func NewRecorderPCM() (*RecorderPCM, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a miniaudio context: %w", err)
	}
	return &RecorderPCM{
		MalgoContext: ctx,
	}, nil
}

func (r *RecorderPCM) Close() error {
	err := r.MalgoContext.Uninit()
	r.MalgoContext.Free()
	return err
}

func (r *RecorderPCM) Ping(ctx context.Context) error {
	infos, err := r.MalgoContext.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("unable to list the capture devices: %w", err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("no capture devices found")
	}
	for idx, info := range infos {
		logger.Tracef(ctx, "devices[%d]: %s", idx, info.Name())
	}
	return nil
}

func malgoFormat(format types.PCMFormat) (malgo.FormatType, error) {
	switch format {
	case types.PCMFormatU8:
		return malgo.FormatU8, nil
	case types.PCMFormatS16LE:
		return malgo.FormatS16, nil
	case types.PCMFormatS24LE:
		return malgo.FormatS24, nil
	case types.PCMFormatS32LE:
		return malgo.FormatS32, nil
	case types.PCMFormatFloat32LE:
		return malgo.FormatF32, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("PCM format %s is not supported by miniaudio", format)
	}
}

func (r *RecorderPCM) RecordPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	writer io.Writer,
) (_ types.RecordStream, _err error) {
	logger.Debugf(ctx, "RecordPCM(%d, %d, %s)", sampleRate, channels, format)
	defer func() { logger.Debugf(ctx, "/RecordPCM(%d, %d, %s): %v", sampleRate, channels, format, _err) }()

	malgoFmt, err := malgoFormat(format)
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgoFmt
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	s := &RecordStream{}
	device, err := malgo.InitDevice(r.MalgoContext.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			s.onData(ctx, writer, in)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the capture device: %w", err)
	}
	s.Device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("unable to start the capture device: %w", err)
	}
	return s, nil
}

type RecordStream struct {
	Device *malgo.Device

	locker   sync.Mutex
	closed   bool
	writeErr error
}

var _ types.RecordStream = (*RecordStream)(nil)

func (s *RecordStream) onData(
	ctx context.Context,
	writer io.Writer,
	in []byte,
) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed || s.writeErr != nil {
		return
	}
	if _, err := writer.Write(in); err != nil {
		logger.Errorf(ctx, "unable to write the captured audio: %v", err)
		s.writeErr = err
	}
}

func (s *RecordStream) Drain() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.writeErr
}

func (s *RecordStream) Close() error {
	s.locker.Lock()
	if s.closed {
		s.locker.Unlock()
		return nil
	}
	s.closed = true
	s.locker.Unlock()

	err := s.Device.Stop()
	s.Device.Uninit()
	if err != nil {
		return fmt.Errorf("unable to stop the capture device: %w", err)
	}
	return nil
}
