package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
)

const BufferSize = 100 * time.Millisecond

type Player struct {
	PlayerPCM
}

var _ PlayerPCM = (*Player)(nil)

func NewPlayer(playerPCM PlayerPCM) *Player {
	return &Player{
		PlayerPCM: playerPCM,
	}
}

var lastSuccessfulPlayerFactory lastSuccessful[registry.PlayerPCMFactory]

func NewPlayerAuto(
	ctx context.Context,
) *Player {
	playerPCM, err := pickBackend(
		ctx,
		"PCM player",
		&lastSuccessfulPlayerFactory,
		registry.PlayerFactories(),
		func(factory registry.PlayerPCMFactory) (PlayerPCM, error) {
			return factory.NewPlayerPCM()
		},
	)
	if err != nil {
		logger.Infof(ctx, "was unable to initialize any PCM player: %v", err)
		return NewPlayer(PlayerPCMDummy{})
	}
	return NewPlayer(playerPCM)
}

// DecodeVorbis opens an Ogg/Vorbis stream and returns a reader of
// interleaved float32le samples together with its sample rate and channels.
func DecodeVorbis(
	rawReader io.Reader,
) (io.Reader, SampleRate, Channel, error) {
	oggReader, err := oggvorbis.NewReader(rawReader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	return newReaderFromFloat32Reader(oggReader), SampleRate(oggReader.SampleRate()), Channel(oggReader.Channels()), nil
}

func (a *Player) PlayVorbis(
	ctx context.Context,
	rawReader io.Reader,
) (PlayStream, error) {
	reader, sampleRate, channels, err := DecodeVorbis(rawReader)
	if err != nil {
		return nil, err
	}

	stream, err := a.PlayerPCM.PlayPCM(
		ctx,
		sampleRate,
		channels,
		PCMFormatFloat32LE,
		BufferSize,
		reader,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to playback as PCM: %w", err)
	}
	return stream, nil
}

func (a *Player) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	pcmFormat PCMFormat,
	bufferSize time.Duration,
	pcmReader io.Reader,
) (PlayStream, error) {
	logger.Tracef(ctx, "PlayPCM(%d, %d, %s, %v) using %T", sampleRate, channels, pcmFormat, bufferSize, a.PlayerPCM)
	return a.PlayerPCM.PlayPCM(
		ctx,
		sampleRate,
		channels,
		pcmFormat,
		bufferSize,
		pcmReader,
	)
}
