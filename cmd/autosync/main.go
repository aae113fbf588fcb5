package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	_ "github.com/xaionaro-go/lyricsync/pkg/audio/backends/malgo"
	_ "github.com/xaionaro-go/lyricsync/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/lyricsync/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/lyricsync/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph/local"
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
	"github.com/xaionaro-go/lyricsync/pkg/audio/resampler"
	"github.com/xaionaro-go/lyricsync/pkg/audio/wavfile"
	"github.com/xaionaro-go/lyricsync/pkg/autosync"
	"github.com/xaionaro-go/lyricsync/pkg/capture"
	"github.com/xaionaro-go/observability"
	"gopkg.in/yaml.v3"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML file with the synchronization settings")
	duration := pflag.Duration("duration", 0, "capture window (overrides the config)")
	maxLag := pflag.Float64("max-lag", 0, "maximal searched delay in seconds (overrides the config)")
	threshold := pflag.Float64("threshold", 0, "minimal correlation to accept the result (overrides the config)")
	precise := pflag.Bool("precise", false, "additionally estimate the delay on the raw samples with GCC-PHAT")
	noiseSuppression := pflag.Bool("noise-suppression", false, "suppress the noise of the microphone using RNNoise")
	sampleRate := pflag.Uint32("sample-rate", uint32(local.DefaultSampleRate), "sample rate of the analysis")
	repeat := pflag.Int("repeat", 1, "amount of attempts to run")
	dumpDir := pflag.String("dump-dir", "", "a directory to write the captured audio to (as WAV files)")
	metricsAddr := pflag.String("metrics-listen-addr", "", "an address to serve the prometheus metrics on")
	backends := pflag.StringSlice("backends", nil, fmt.Sprintf("audio backends allowed to be picked, any of %v (default: all)", registry.Names()))
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to the WAV or Ogg/Vorbis file to play")
	}
	filePath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	assertNoError(registry.Restrict(*backends...))

	cfg := autosync.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = autosync.LoadConfig(*configPath)
		assertNoError(err)
	}
	if pflag.CommandLine.Changed("duration") {
		cfg.Duration = *duration
	}
	if pflag.CommandLine.Changed("max-lag") {
		cfg.MaxLagSeconds = *maxLag
	}
	if pflag.CommandLine.Changed("threshold") {
		cfg.CorrelationThreshold = *threshold
	}
	if pflag.CommandLine.Changed("precise") {
		cfg.PreciseRefinement = *precise
	}
	if pflag.CommandLine.Changed("noise-suppression") {
		cfg.Mic.NoiseSuppression = *noiseSuppression
	}
	cfg.RetainBuffers = *dumpDir != ""
	cfg.OnPhase = func(phase autosync.Phase) {
		logger.Infof(ctx, "%s...", phase)
	}
	assertNoError(cfg.Validate())

	var metrics *autosync.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = autosync.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		observability.Go(ctx, func(ctx context.Context) {
			logger.Errorf(ctx, "unable to serve the metrics: %v", http.ListenAndServe(*metricsAddr, mux))
		})
	}

	file, err := os.Open(filePath)
	assertNoError(err)
	defer file.Close()
	reader, format, err := openProgram(file)
	assertNoError(err)

	graphCtx := local.NewContext(audio.SampleRate(*sampleRate))
	defer graphCtx.Close()

	tap, err := graphCtx.NewProgramTap(ctx, reader, format)
	assertNoError(err)
	defer tap.Close()

	player := audio.NewPlayerAuto(ctx)
	defer player.Close()
	logger.Tracef(ctx, "player.PlayPCM")
	streamPlay, err := player.PlayPCM(ctx, format.SampleRate, format.Channels, format.PCMFormat, audio.BufferSize, tap)
	logger.Tracef(ctx, "/player.PlayPCM: %v", err)
	assertNoError(err)
	defer streamPlay.Close()

	recorder := audio.NewRecorderAuto(ctx)
	defer recorder.Close()
	logger.Infof(ctx, "started (%T -> %T, %T)", player.PlayerPCM, tap, recorder.RecorderPCM)

	syncer := autosync.New(graphCtx, tap.Node(), local.NewMicrophone(graphCtx, recorder))
	syncer.Metrics = metrics

	failed := 0
	for attempt := 0; attempt < *repeat; attempt++ {
		outcome := syncer.Run(ctx, cfg)
		if !outcome.OK {
			failed++
		}

		report, err := yaml.Marshal(outcome)
		assertNoError(err)
		fmt.Printf("---\n%s", report)

		if outcome.Captured != nil {
			assertNoError(dump(*dumpDir, outcome.Diagnostics.AttemptID, outcome.Captured))
		}
	}
	logger.Infof(ctx, "attempts: %d, failed: %d, bytes played: %d", *repeat, failed, tap.Count())
}

func openProgram(
	file *os.File,
) (io.Reader, resampler.Format, error) {
	if strings.EqualFold(filepath.Ext(file.Name()), ".ogg") {
		r, sampleRate, channels, err := audio.DecodeVorbis(file)
		if err != nil {
			return nil, resampler.Format{}, err
		}
		return r, resampler.Format{
			Channels:   channels,
			SampleRate: sampleRate,
			PCMFormat:  audio.PCMFormatFloat32LE,
		}, nil
	}
	return wavfile.Decode(file)
}

func dump(
	dir string,
	attemptID string,
	captured *capture.Result,
) error {
	for name, samples := range map[string][]float32{
		"program": captured.Program,
		"mic":     captured.Mic,
	} {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.wav", attemptID, name))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("unable to create '%s': %w", path, err)
		}
		err = wavfile.WriteMono(f, captured.SampleRate, samples)
		f.Close()
		if err != nil {
			return fmt.Errorf("unable to write '%s': %w", path, err)
		}
	}
	return nil
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
