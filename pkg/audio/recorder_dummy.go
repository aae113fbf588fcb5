package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

// RecorderPCMDummy records silence at the real-time pace. It is used when
// no real backend is available.
type RecorderPCMDummy struct{}

var _ RecorderPCM = RecorderPCMDummy{}

func (RecorderPCMDummy) Close() error {
	return nil
}

func (RecorderPCMDummy) Ping(context.Context) error {
	return nil
}

func (RecorderPCMDummy) RecordPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	writer io.Writer,
) (RecordStream, error) {
	chunkSize := bytesForDuration(sampleRate, channels, format, BufferSize)
	if chunkSize <= 0 {
		return nil, fmt.Errorf("unable to record %d Hz, %d channels of %s", sampleRate, channels, format)
	}

	ctx, cancelFn := context.WithCancel(ctx)
	s := &recordStreamDummy{
		streamDummy: streamDummy{
			cancelFunc: cancelFn,
			done:       make(chan struct{}),
		},
	}
	observability.Go(ctx, func(ctx context.Context) {
		defer close(s.done)
		silence := make([]byte, chunkSize)
		if format == PCMFormatU8 {
			for idx := range silence {
				silence[idx] = 0x80
			}
		}
		t := time.NewTicker(BufferSize)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if _, err := writer.Write(silence); err != nil {
				s.err = fmt.Errorf("unable to write: %w", err)
				logger.Debugf(ctx, "the dummy recording ended: %v", s.err)
				return
			}
		}
	})
	return s, nil
}
