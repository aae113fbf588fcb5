package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
)

type fakeBackend struct {
	name    string
	pingErr error
	closed  *[]string
}

func (b fakeBackend) Ping(context.Context) error {
	return b.pingErr
}

func (b fakeBackend) Close() error {
	*b.closed = append(*b.closed, b.name)
	return nil
}

type fakeFactory struct {
	name    string
	initErr error
	pingErr error
}

func TestPickBackend(t *testing.T) {
	ctx := context.Background()
	var (
		closed  []string
		created []string
	)
	newBackend := func(f fakeFactory) (fakeBackend, error) {
		created = append(created, f.name)
		if f.initErr != nil {
			return fakeBackend{}, f.initErr
		}
		return fakeBackend{name: f.name, pingErr: f.pingErr, closed: &closed}, nil
	}
	entries := []registry.Entry[fakeFactory]{
		{Backend: "broken", Priority: 100, Factory: fakeFactory{name: "broken", initErr: errors.New("no server")}},
		{Backend: "deaf", Priority: 60, Factory: fakeFactory{name: "deaf", pingErr: errors.New("no device")}},
		{Backend: "working", Priority: 40, Factory: fakeFactory{name: "working"}},
	}

	var last lastSuccessful[fakeFactory]
	backend, err := pickBackend(ctx, "fake", &last, entries, newBackend)
	require.NoError(t, err)
	require.Equal(t, "working", backend.name)
	require.Equal(t, []string{"broken", "deaf", "working"}, created)
	require.Equal(t, []string{"deaf"}, closed)

	// the last successful backend is tried first next time
	created = nil
	backend, err = pickBackend(ctx, "fake", &last, entries, newBackend)
	require.NoError(t, err)
	require.Equal(t, "working", backend.name)
	require.Equal(t, []string{"working"}, created)

	// unless it is not among the allowed ones anymore
	created = nil
	_, err = pickBackend(ctx, "fake", &last, entries[:2], newBackend)
	require.Error(t, err)
	require.ErrorContains(t, err, "'broken'")
	require.ErrorContains(t, err, "'deaf'")
	require.Equal(t, []string{"broken", "deaf"}, created)

	_, err = pickBackend(ctx, "fake", &last, nil, newBackend)
	require.ErrorContains(t, err, "no fake backends are registered")
}
