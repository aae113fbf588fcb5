package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/interpolation"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	Duration  time.Duration
	BatchSize int

	// TimeoutPadding is added to Duration to get the deadline of each session.
	TimeoutPadding time.Duration

	Interpolator interpolation.Interpolator
}

// Result is a pair of buffers covering the same window at the same sample rate.
type Result struct {
	SampleRate   int
	Program      []float32
	Mic          []float32
	ProgramStats Stats
	MicStats     Stats
}

// TargetSamples is the amount of samples in a window of the duration.
func TargetSamples(duration time.Duration, sampleRate int) int {
	return int(math.Round(duration.Seconds() * float64(sampleRate)))
}

// CaptureBoth captures the program and the microphone nodes over the same
// window. Both sessions are started before either is awaited; the first
// failure cancels the other one. All the edges are disconnected before
// CaptureBoth returns.
func CaptureBoth(
	ctx context.Context,
	registry *Registry,
	graphCtx graph.Context,
	program graph.Node,
	mic graph.Node,
	params Params,
) (_ *Result, _err error) {
	logger.Debugf(ctx, "CaptureBoth(%s, %v)", graphCtx.ID(), params.Duration)
	defer func() { logger.Debugf(ctx, "/CaptureBoth(%s, %v): %v", graphCtx.ID(), params.Duration, _err) }()

	if params.BatchSize <= 0 {
		params.BatchSize = DefaultBatchSize
	}
	sampleRate := graphCtx.SampleRate()
	target := TargetSamples(params.Duration, sampleRate)

	processorName, err := registry.Ensure(ctx, graphCtx, params.BatchSize)
	if err != nil {
		return nil, err
	}

	sessionParams := func(name string) SessionParams {
		return SessionParams{
			Name:          name,
			ProcessorName: processorName,
			BatchSize:     params.BatchSize,
			TargetSamples: target,
			Timeout:       params.Duration + params.TimeoutPadding,
			Interpolator:  params.Interpolator,
		}
	}
	programSession, err := NewSession(ctx, graphCtx, program, sessionParams("program"))
	if err != nil {
		return nil, err
	}
	micSession, err := NewSession(ctx, graphCtx, mic, sessionParams("mic"))
	if err != nil {
		return nil, err
	}
	defer func() {
		var mErr *multierror.Error
		for _, s := range []*Session{programSession, micSession} {
			if err := s.Close(); err != nil {
				mErr = multierror.Append(mErr, err)
			}
		}
		if err := mErr.ErrorOrNil(); err != nil {
			logger.Errorf(ctx, "unable to tear down the capture graph: %v", err)
		}
	}()

	if err := programSession.Start(ctx); err != nil {
		return nil, err
	}
	if err := micSession.Start(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		SampleRate: sampleRate,
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf, err := programSession.Wait(gCtx)
		result.Program = buf
		return err
	})
	g.Go(func() error {
		buf, err := micSession.Wait(gCtx)
		result.Mic = buf
		return err
	})
	err = g.Wait()
	result.ProgramStats = programSession.Stats()
	result.MicStats = micSession.Stats()
	if err != nil {
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			return result, err
		}
		return result, fmt.Errorf("unable to capture: %w", err)
	}
	return result, nil
}
