package graphtest

import (
	"context"
	"sync"

	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

type MediaStream struct {
	Samples []float32

	locker    sync.Mutex
	stopCount int
}

var _ graph.MediaStream = (*MediaStream)(nil)

func (s *MediaStream) Stop() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.stopCount++
	return nil
}

func (s *MediaStream) StopCount() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.stopCount
}

// Microphone hands out Stream, or fails with AcquireErr. With Block set
// it waits until the context is done.
type Microphone struct {
	Stream     *MediaStream
	AcquireErr error
	Block      bool

	locker      sync.Mutex
	constraints []graph.Constraints
}

var _ graph.Microphone = (*Microphone)(nil)

func (m *Microphone) Acquire(ctx context.Context, constraints graph.Constraints) (graph.MediaStream, error) {
	m.locker.Lock()
	m.constraints = append(m.constraints, constraints)
	m.locker.Unlock()

	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	return m.Stream, nil
}

// Requests returns the constraints of every Acquire call.
func (m *Microphone) Requests() []graph.Constraints {
	m.locker.Lock()
	defer m.locker.Unlock()
	return append([]graph.Constraints(nil), m.constraints...)
}
