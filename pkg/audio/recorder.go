package audio

import (
	"context"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
)

type Recorder struct {
	RecorderPCM
}

var _ RecorderPCM = (*Recorder)(nil)

func NewRecorder(recorderPCM RecorderPCM) *Recorder {
	return &Recorder{
		RecorderPCM: recorderPCM,
	}
}

var lastSuccessfulRecorderFactory lastSuccessful[registry.RecorderPCMFactory]

// NewRecorderAuto returns a recorder of the first backend (by priority) that
// could be initialized and pinged. If none works, then a dummy recorder is returned.
func NewRecorderAuto(
	ctx context.Context,
) *Recorder {
	recorder, err := NewRecorderAutoStrict(ctx)
	if err != nil {
		logger.Infof(ctx, "was unable to initialize any PCM recorder: %v", err)
		return NewRecorder(RecorderPCMDummy{})
	}
	return recorder
}

// NewRecorderAutoStrict is the same as NewRecorderAuto, but returns an
// error instead of falling back to the dummy recorder.
func NewRecorderAutoStrict(
	ctx context.Context,
) (*Recorder, error) {
	recorderPCM, err := pickBackend(
		ctx,
		"PCM recorder",
		&lastSuccessfulRecorderFactory,
		registry.RecorderFactories(),
		func(factory registry.RecorderPCMFactory) (RecorderPCM, error) {
			return factory.NewRecorderPCM()
		},
	)
	if err != nil {
		return nil, err
	}
	return NewRecorder(recorderPCM), nil
}

func (a *Recorder) RecordPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	pcmFormat PCMFormat,
	pcmWriter io.Writer,
) (RecordStream, error) {
	logger.Tracef(ctx, "RecordPCM(%d, %d, %s) using %T", sampleRate, channels, pcmFormat, a.RecorderPCM)
	return a.RecorderPCM.RecordPCM(
		ctx,
		sampleRate,
		channels,
		pcmFormat,
		pcmWriter,
	)
}
