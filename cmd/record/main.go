package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	_ "github.com/xaionaro-go/lyricsync/pkg/audio/backends/malgo"
	_ "github.com/xaionaro-go/lyricsync/pkg/audio/backends/portaudio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
	"github.com/xaionaro-go/lyricsync/pkg/audio/wavfile"
	"github.com/xaionaro-go/observability"
)

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	duration := pflag.Duration("duration", 5*time.Second, "how long to record")
	sampleRate := pflag.Uint32("sample-rate", 48000, "")
	backends := pflag.StringSlice("backends", nil, fmt.Sprintf("audio backends allowed to be picked, any of %v (default: all)", registry.Names()))
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to the output WAV file")
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	assertNoError(registry.Restrict(*backends...))

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	logger.Infof(ctx, "starting...")
	recorder := audio.NewRecorderAuto(ctx)
	defer recorder.Close()

	var buf bytes.Buffer
	wc := datacounter.NewWriterCounter(&buf)
	logger.Tracef(ctx, "recorder.RecordPCM")
	streamRecord, err := recorder.RecordPCM(ctx, audio.SampleRate(*sampleRate), 1, audio.PCMFormatFloat32LE, wc)
	logger.Tracef(ctx, "/recorder.RecordPCM: %v", err)
	assertNoError(err)

	observability.Go(ctx, func(ctx context.Context) {
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "written: %d", wc.Count())
				if pulseStreamRecord, ok := streamRecord.(*pulseaudio.RecordStream); ok {
					logger.Debugf(ctx, "record stream status: running:%v, closed:%v, err:%v", pulseStreamRecord.Running(), pulseStreamRecord.Closed(), pulseStreamRecord.Error())
				}
			}
		}
	})

	logger.Infof(ctx, "recording for %v using %T", *duration, recorder.RecorderPCM)
	time.Sleep(*duration)
	assertNoError(streamRecord.Close())
	cancelFn()

	samples := audio.Float32LEToSamples(nil, buf.Bytes())
	f, err := os.Create(pflag.Arg(0))
	assertNoError(err)
	defer f.Close()
	assertNoError(wavfile.WriteMono(f, int(*sampleRate), samples))
	logger.Infof(ctx, "written %d samples to '%s'", len(samples), pflag.Arg(0))
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
