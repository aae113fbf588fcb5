package local

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"github.com/xaionaro-go/lyricsync/pkg/audio/resampler"
)

// ProgramTap is to be given to a player instead of the original reader:
// everything the player reads through it is also delivered to Node.
type ProgramTap struct {
	reader    *datacounter.ReaderCounter
	node      *sourceNode
	converter *converter
	ctx       context.Context
}

var _ io.ReadCloser = (*ProgramTap)(nil)

func (c *Context) NewProgramTap(
	ctx context.Context,
	reader io.Reader,
	format resampler.Format,
) (*ProgramTap, error) {
	conv, err := newConverter(format, c.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("unable to convert %#+v: %w", format, err)
	}
	return &ProgramTap{
		reader:    datacounter.NewReaderCounter(reader),
		node:      c.newSourceNode("program"),
		converter: conv,
		ctx:       ctx,
	}, nil
}

func (t *ProgramTap) Node() graph.Node {
	return t.node
}

// Count returns the amount of bytes read so far.
func (t *ProgramTap) Count() uint64 {
	return t.reader.Count()
}

func (t *ProgramTap) Read(p []byte) (int, error) {
	n, err := t.reader.Read(p)
	if n > 0 {
		samples, convErr := t.converter.convert(p[:n])
		if convErr != nil {
			logger.Errorf(t.ctx, "unable to convert the program audio: %v", convErr)
		}
		t.node.push(samples)
	}
	return n, err
}

// Close detaches the tap from the graph; the underlying reader is not closed.
func (t *ProgramTap) Close() error {
	t.node.disconnectAll()
	t.node.graphCtx.forgetSourceNode(t.node)
	return nil
}
