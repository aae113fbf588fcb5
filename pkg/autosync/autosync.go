// Package autosync detects the offset between the audio an application is
// playing and what the microphone hears while the lyrics are sung along.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/capture"
	"github.com/xaionaro-go/lyricsync/pkg/envelope"
	"github.com/xaionaro-go/lyricsync/pkg/interpolation"
	"github.com/xaionaro-go/lyricsync/pkg/interpolation/fourier"
	"github.com/xaionaro-go/lyricsync/pkg/syncer"
	"github.com/xaionaro-go/lyricsync/pkg/syncer/implementations/gccphat"
	"github.com/xaionaro-go/lyricsync/pkg/syncer/implementations/xcorr"
	"golang.org/x/sync/errgroup"
)

const contextPollInterval = 10 * time.Millisecond

// DefaultRegistry is shared by the Syncers created with New.
var DefaultRegistry = capture.NewRegistry()

// Syncer runs offset detection attempts against one audio context, one
// attempt at a time.
type Syncer struct {
	GraphContext graph.Context
	Program      graph.Node
	Microphone   graph.Microphone
	Registry     *capture.Registry

	// Estimator compares the envelopes; xcorr by default.
	Estimator    syncer.Syncer
	Interpolator interpolation.Interpolator
	Metrics      *Metrics

	busy  atomic.Bool
	state atomic.Int32
}

func New(
	graphCtx graph.Context,
	program graph.Node,
	mic graph.Microphone,
) *Syncer {
	return &Syncer{
		GraphContext: graphCtx,
		Program:      program,
		Microphone:   mic,
		Registry:     DefaultRegistry,
		Estimator:    xcorr.NewSyncer(),
		Interpolator: fourier.New(),
	}
}

// RunAutoSync runs a single attempt with a Syncer created by New.
func RunAutoSync(
	ctx context.Context,
	graphCtx graph.Context,
	program graph.Node,
	mic graph.Microphone,
	cfg Config,
) Outcome {
	return New(graphCtx, program, mic).Run(ctx, cfg)
}

func (s *Syncer) State() State {
	return State(s.state.Load())
}

func (s *Syncer) setState(ctx context.Context, state State) {
	old := State(s.state.Swap(int32(state)))
	logger.Tracef(ctx, "state: %s -> %s", old, state)
}

// Run captures both the program and the microphone for cfg.Duration and
// estimates by how much the microphone is behind the program.
//
// Every acquired resource is released before Run returns, whatever the
// outcome is. A concurrent call is rejected with ReasonBusy.
func (s *Syncer) Run(
	ctx context.Context,
	cfg Config,
) (_ret Outcome) {
	startedAt := time.Now()
	attemptID := uuid.NewString()
	ctx = logger.CtxWithLogger(ctx, logger.FromCtx(ctx).WithField("attempt_id", attemptID))
	logger.Debugf(ctx, "Run(%v)", cfg.Duration)
	defer func() {
		logger.Debugf(ctx, "/Run(%v): ok:%t offset:%v reason:'%s' message:'%s'", cfg.Duration, _ret.OK, _ret.OffsetSeconds, _ret.Reason, _ret.Message)
	}()

	diag := &Diagnostics{
		AttemptID: attemptID,
	}
	if !s.busy.CompareAndSwap(false, true) {
		return failure(ReasonBusy, "another synchronization attempt is already running", nil, *diag)
	}
	defer s.busy.Store(false)

	rel := &releaser{}
	outcome := s.run(ctx, cfg, rel, diag)
	if err := rel.releaseAll(ctx); err != nil {
		logger.Errorf(ctx, "unable to release the resources of the attempt: %v", err)
	}
	s.setState(ctx, StateDone)

	outcome.Diagnostics.Elapsed = time.Since(startedAt)
	s.Metrics.observe(outcome)
	return outcome
}

func (s *Syncer) run(
	ctx context.Context,
	cfg Config,
	rel *releaser,
	diag *Diagnostics,
) Outcome {
	fail := func(reason Reason, err error, format string, args ...any) Outcome {
		if reason != ReasonInvalidConfig && ctx.Err() != nil {
			reason = ReasonCanceled
			format, args = "the synchronization was canceled", nil
			err = ctx.Err()
		}
		if err != nil {
			logger.Debugf(ctx, "%s: %v", reason, err)
		}
		return failure(reason, fmt.Sprintf(format, args...), err, *diag)
	}

	if err := cfg.Validate(); err != nil {
		return fail(ReasonInvalidConfig, err, "invalid configuration")
	}

	s.setState(ctx, StateAcquiringContext)
	if err := s.waitContextRunning(ctx, cfg.ContextTimeout); err != nil {
		return fail(ReasonAudioNotReady, err, "the audio output is not running; start the playback and try again")
	}
	diag.SampleRate = s.GraphContext.SampleRate()

	s.setState(ctx, StateAcquiringMic)
	stream, err := s.acquireMic(ctx, cfg)
	if err != nil {
		return fail(ReasonMicDenied, err, "unable to access the microphone; check the permissions and the input device")
	}
	rel.push("stop the microphone stream", stream.Stop)

	micNode, err := s.GraphContext.NewStreamSource(ctx, stream)
	if err != nil {
		return fail(ReasonCaptureFailed, err, "unable to attach the microphone to the audio context")
	}

	// the processor goes first, so that "listening" is never announced
	// for a context that cannot capture at all
	if _, err := s.registry().Ensure(ctx, s.GraphContext, cfg.BatchSize); err != nil {
		return fail(ReasonCaptureUnsupported, err, "the audio context does not support real-time capture processors")
	}

	s.setState(ctx, StateCapturing)
	emitPhase(ctx, cfg, PhaseListening)
	result, err := capture.CaptureBoth(ctx, s.registry(), s.GraphContext, s.Program, micNode, capture.Params{
		Duration:       cfg.Duration,
		BatchSize:      cfg.BatchSize,
		TimeoutPadding: cfg.CaptureTimeoutPadding,
		Interpolator:   s.Interpolator,
	})
	if result != nil {
		diag.ProgramSamples = len(result.Program)
		diag.MicSamples = len(result.Mic)
		diag.ProgramStats = result.ProgramStats
		diag.MicStats = result.MicStats
	}
	if err != nil {
		var (
			regErr     *capture.RegistrationError
			timeoutErr *capture.TimeoutError
		)
		switch {
		case errors.As(err, &regErr):
			return fail(ReasonCaptureUnsupported, err, "the audio context does not support real-time capture processors")
		case errors.As(err, &timeoutErr):
			return fail(ReasonCaptureTimeout, err, "the audio capture timed out (collected %d of %d samples); the audio output might be stalled", timeoutErr.Collected, timeoutErr.Target)
		default:
			return fail(ReasonCaptureFailed, err, "the audio capture failed")
		}
	}

	// nothing but the analysis is left, so the microphone goes first
	if err := rel.releaseAll(ctx); err != nil {
		logger.Errorf(ctx, "unable to release the capture resources: %v", err)
	}

	s.setState(ctx, StateAnalyzing)
	emitPhase(ctx, cfg, PhaseProcessing)
	outcome := s.analyze(ctx, cfg, result, diag, fail)
	if cfg.RetainBuffers {
		outcome.Captured = result
	}
	return outcome
}

func (s *Syncer) registry() *capture.Registry {
	if s.Registry == nil {
		return DefaultRegistry
	}
	return s.Registry
}

func (s *Syncer) estimator() syncer.Syncer {
	if s.Estimator == nil {
		return xcorr.NewSyncer()
	}
	return s.Estimator
}

func emitPhase(ctx context.Context, cfg Config, phase Phase) {
	logger.Debugf(ctx, "phase: %s", phase)
	if cfg.OnPhase != nil {
		cfg.OnPhase(phase)
	}
}

// waitContextRunning resumes the audio context if needed and waits until
// it is running.
func (s *Syncer) waitContextRunning(
	ctx context.Context,
	timeout time.Duration,
) (_err error) {
	logger.Debugf(ctx, "waitContextRunning(%v)", timeout)
	defer func() { logger.Debugf(ctx, "/waitContextRunning(%v): %v", timeout, _err) }()

	ctx, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	switch s.GraphContext.State() {
	case graph.StateRunning:
		return nil
	case graph.StateClosed:
		return graph.ErrClosed
	}

	if err := s.GraphContext.Resume(ctx); err != nil {
		return fmt.Errorf("unable to resume the audio context: %w", err)
	}

	ticker := time.NewTicker(contextPollInterval)
	defer ticker.Stop()
	for {
		state := s.GraphContext.State()
		switch state {
		case graph.StateRunning:
			return nil
		case graph.StateClosed:
			return graph.ErrClosed
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("the audio context is still %s: %w", state, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Syncer) acquireMic(
	ctx context.Context,
	cfg Config,
) (_ graph.MediaStream, _err error) {
	logger.Debugf(ctx, "acquireMic(%#+v)", cfg.Mic)
	defer func() { logger.Debugf(ctx, "/acquireMic(%#+v): %v", cfg.Mic, _err) }()

	if s.Microphone == nil {
		return nil, graph.ErrDeviceUnavailable
	}

	ctx, cancelFn := context.WithTimeout(ctx, cfg.MicTimeout)
	defer cancelFn()
	stream, err := s.Microphone.Acquire(ctx, cfg.Mic)
	if err != nil {
		return nil, fmt.Errorf("unable to acquire the microphone: %w", err)
	}
	return stream, nil
}

func (s *Syncer) analyze(
	ctx context.Context,
	cfg Config,
	result *capture.Result,
	diag *Diagnostics,
	fail func(reason Reason, err error, format string, args ...any) Outcome,
) Outcome {
	program, mic := result.Program, result.Mic
	if len(program) == 0 && len(mic) == 0 {
		return fail(ReasonLowSignal, nil, "no audio was captured")
	}

	diag.ProgramRMS = envelope.RMS(program)
	diag.MicRMS = envelope.RMS(mic)
	logger.Debugf(ctx, "RMS: program:%v mic:%v", diag.ProgramRMS, diag.MicRMS)
	if diag.ProgramRMS <= cfg.MinRMS {
		return fail(ReasonLowSignal, nil, "nothing seems to be playing (the level is %.5f)", diag.ProgramRMS)
	}
	if diag.MicRMS <= cfg.MinRMS {
		return fail(ReasonLowSignal, nil, "the microphone does not hear anything (the level is %.5f); turn the speakers up or move the microphone closer", diag.MicRMS)
	}

	var programEnv, micEnv []float64
	var g errgroup.Group
	g.Go(func() error {
		programEnv, diag.ProgramModulation = standardEnvelope(cfg, program)
		return nil
	})
	g.Go(func() error {
		micEnv, diag.MicModulation = standardEnvelope(cfg, mic)
		return nil
	})
	_ = g.Wait()
	diag.EnvelopeFrames = min(len(programEnv), len(micEnv))
	logger.Debugf(ctx, "modulation: program:%v mic:%v", diag.ProgramModulation, diag.MicModulation)
	if diag.EnvelopeFrames == 0 {
		return fail(ReasonLowSignal, syncer.ErrNoOverlap, "too little audio was captured to analyze")
	}
	// a steady level carries no timing: any lag would score the same noise
	if diag.ProgramModulation < cfg.MinEnvelopeModulation {
		return fail(ReasonNoCorrelation, nil, "the playing audio has no level changes to align with (modulation %.3f)", diag.ProgramModulation)
	}
	if diag.MicModulation < cfg.MinEnvelopeModulation {
		return fail(ReasonNoCorrelation, nil, "the microphone hears only a steady noise (modulation %.3f)", diag.MicModulation)
	}

	diag.MaxLag = syncer.MaxLagFrames(cfg.MaxLagSeconds, diag.SampleRate, cfg.HopSize, len(programEnv), len(micEnv))
	shift, err := s.estimator().CalculateShiftBetween(ctx, programEnv, micEnv, diag.MaxLag)
	switch {
	case errors.Is(err, syncer.ErrNoOverlap):
		return fail(ReasonLowSignal, err, "too little audio was captured to analyze")
	case err != nil:
		return fail(ReasonNoCorrelation, err, "unable to correlate the program and the microphone audio")
	}
	diag.Lag = shift.Lag
	diag.Correlation = shift.Correlation
	logger.Debugf(ctx, "lag:%d maxLag:%d correlation:%v", shift.Lag, diag.MaxLag, shift.Correlation)
	if shift.Correlation < cfg.CorrelationThreshold {
		return fail(ReasonNoCorrelation, nil, "the microphone audio does not match the playing audio (correlation %.2f)", shift.Correlation)
	}

	diag.RawOffsetSeconds = syncer.LagToOffsetSeconds(shift.Lag, cfg.HopSize, diag.SampleRate)
	offset := syncer.ClampOffset(diag.RawOffsetSeconds, cfg.MinOffsetSeconds, cfg.MaxOffsetSeconds)

	if cfg.PreciseRefinement {
		precise, err := refine(ctx, cfg, result)
		if err != nil {
			logger.Warnf(ctx, "unable to refine the offset: %v", err)
		} else {
			diag.PreciseOffsetSeconds = &precise
		}
	}

	return success(offset, shift.Correlation, *diag)
}

// standardEnvelope returns the normalized envelope of the buffer and its
// modulation.
func standardEnvelope(cfg Config, buf []float32) ([]float64, float64) {
	env := envelope.Compute(buf, cfg.FrameSize, cfg.HopSize)
	return envelope.Normalize(env), envelope.Modulation(env)
}

// refine estimates the delay on the raw samples with a sub-sample precision.
func refine(
	ctx context.Context,
	cfg Config,
	result *capture.Result,
) (_ float64, _err error) {
	logger.Debugf(ctx, "refine")
	defer func() { logger.Debugf(ctx, "/refine: %v", _err) }()

	s, err := gccphat.NewSyncer(result.SampleRate)
	if err != nil {
		return 0, fmt.Errorf("unable to initialize GCC-PHAT: %w", err)
	}
	program := make([]float64, len(result.Program))
	for i, v := range result.Program {
		program[i] = float64(v)
	}
	mic := make([]float64, len(result.Mic))
	for i, v := range result.Mic {
		mic[i] = float64(v)
	}
	maxLag := syncer.MaxLagFrames(cfg.MaxLagSeconds, result.SampleRate, 1, len(program), len(mic))
	shift, err := s.CalculateShiftBetween(ctx, program, mic, maxLag)
	if err != nil {
		return 0, err
	}
	return shift.FractionalLag / float64(result.SampleRate), nil
}
