package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/interpolation"
)

// interpolationContext is how many samples before and after a gap are
// handed to the interpolator.
const interpolationContext = 1024

type SessionParams struct {
	// Name is used only in logs.
	Name string

	ProcessorName string
	BatchSize     int
	TargetSamples int

	// Timeout is counted from Start.
	Timeout time.Duration

	// Interpolator fills the batches dropped on the way from the
	// real-time thread. Nil means silence.
	Interpolator interpolation.Interpolator
}

// Session captures TargetSamples samples of one source node.
type Session struct {
	Params SessionParams

	source    graph.Node
	processor graph.Node
	port      graph.ChanPort

	locker    sync.Mutex
	connected bool
	startedAt time.Time
	stats     Stats
}

// NewSession instantiates the capture processor; nothing is connected
// until Start.
func NewSession(
	ctx context.Context,
	graphCtx graph.Context,
	source graph.Node,
	params SessionParams,
) (*Session, error) {
	if params.BatchSize <= 0 {
		return nil, fmt.Errorf("the batch size must be positive, got %d", params.BatchSize)
	}
	if params.TargetSamples <= 0 {
		return nil, fmt.Errorf("the target amount of samples must be positive, got %d", params.TargetSamples)
	}
	if source == nil {
		return nil, fmt.Errorf("the source node of '%s' is nil", params.Name)
	}

	// room for every batch of the window plus one, so nothing is dropped
	// unless the consumer stalls
	port := graph.NewChanPort((params.TargetSamples+params.BatchSize-1)/params.BatchSize + 1)
	processor, err := graphCtx.NewProcessorNode(ctx, params.ProcessorName, port)
	if err != nil {
		return nil, fmt.Errorf("unable to instantiate processor '%s' for '%s': %w", params.ProcessorName, params.Name, err)
	}

	return &Session{
		Params:    params,
		source:    source,
		processor: processor,
		port:      port,
	}, nil
}

// Start connects the source to the processor and starts the deadline.
func (s *Session) Start(ctx context.Context) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.connected {
		return fmt.Errorf("session '%s' is already started", s.Params.Name)
	}
	logger.Tracef(ctx, "connecting '%s'", s.Params.Name)
	if err := s.source.Connect(s.processor); err != nil {
		return fmt.Errorf("unable to connect the source of '%s' to the processor: %w", s.Params.Name, err)
	}
	s.connected = true
	s.startedAt = time.Now()
	return nil
}

// Close disconnects everything Start connected. It is safe to call it
// several times.
func (s *Session) Close() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.source.Disconnect(s.processor); err != nil {
		return fmt.Errorf("unable to disconnect the source of '%s': %w", s.Params.Name, err)
	}
	return nil
}

func (s *Session) Stats() Stats {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.stats
}

// Wait collects batches until TargetSamples samples are there, the
// session deadline elapses or ctx is done. The session is disconnected
// before Wait returns.
func (s *Session) Wait(ctx context.Context) (_ []float32, _err error) {
	logger.Debugf(ctx, "Wait[%s]", s.Params.Name)
	defer func() { logger.Debugf(ctx, "/Wait[%s]: %v", s.Params.Name, _err) }()
	defer func() {
		if err := s.Close(); err != nil {
			logger.Errorf(ctx, "%v", err)
		}
	}()

	s.locker.Lock()
	startedAt := s.startedAt
	connected := s.connected
	s.locker.Unlock()
	if !connected {
		return nil, fmt.Errorf("session '%s' is not started", s.Params.Name)
	}

	timer := time.NewTimer(time.Until(startedAt.Add(s.Params.Timeout)))
	defer timer.Stop()

	c := newCollector(s.Params.TargetSamples, s.Params.BatchSize, s.Params.Interpolator)
	defer func() {
		s.locker.Lock()
		defer s.locker.Unlock()
		s.stats = c.stats
	}()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("the capture of '%s' was interrupted: %w", s.Params.Name, ctx.Err())
		case <-timer.C:
			if c.drain(s.port) {
				return c.buf, nil
			}
			return nil, &TimeoutError{
				Collected: len(c.buf),
				Target:    s.Params.TargetSamples,
				Partial:   c.buf,
			}
		case batch := <-s.port:
			if c.add(batch) {
				return c.buf, nil
			}
		}
	}
}

type collector struct {
	target       int
	batchSize    int
	interpolator interpolation.Interpolator
	buf          []float32
	nextSeq      uint64
	stats        Stats
}

func newCollector(
	target int,
	batchSize int,
	interpolator interpolation.Interpolator,
) *collector {
	return &collector{
		target:       target,
		batchSize:    batchSize,
		interpolator: interpolator,
		buf:          make([]float32, 0, target+batchSize),
	}
}

// add appends the batch (and whatever was dropped before it) and reports
// if the target is reached; the buffer is truncated to the target then.
func (c *collector) add(batch graph.Batch) bool {
	c.stats.Batches++
	if batch.Seq > c.nextSeq {
		missing := batch.Seq - c.nextSeq
		c.stats.DroppedBatches += missing
		gapLen := int(missing) * c.batchSize
		if room := c.target - len(c.buf); gapLen > room {
			gapLen = room
		}
		c.buf = append(c.buf, c.fill(batch.Samples, gapLen)...)
		c.stats.InterpolatedSamples += gapLen
	}
	if batch.Seq >= c.nextSeq {
		c.nextSeq = batch.Seq + 1
	}
	c.buf = append(c.buf, batch.Samples...)
	if len(c.buf) < c.target {
		c.stats.Samples = len(c.buf)
		return false
	}
	c.buf = c.buf[:c.target]
	c.stats.Samples = len(c.buf)
	return true
}

// drain consumes the batches already waiting in the port.
func (c *collector) drain(port graph.ChanPort) bool {
	for {
		select {
		case batch := <-port:
			if c.add(batch) {
				return true
			}
		default:
			return false
		}
	}
}

func (c *collector) fill(after []float32, gapLen int) []float32 {
	if c.interpolator == nil {
		return make([]float32, gapLen)
	}
	before := c.buf[max(0, len(c.buf)-interpolationContext):]
	return c.interpolator.Interpolate(before, after[:min(len(after), interpolationContext)], gapLen)
}
