package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

func newRecorderFactory() RecorderPCMFactory {
	return RecorderPCMFactoryFunc(func() (types.RecorderPCM, error) { return nil, nil })
}

func newPlayerFactory() PlayerPCMFactory {
	return PlayerPCMFactoryFunc(func() (types.PlayerPCM, error) { return nil, nil })
}

func backendNames[F any](entries []Entry[F]) []string {
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Backend)
	}
	return names
}

func TestRegistryOrder(t *testing.T) {
	r := newRegistry()
	r.register(Backend{Name: "b", Priority: 10, Recorder: newRecorderFactory()})
	r.register(Backend{Name: "c", Priority: 100, Recorder: newRecorderFactory(), Player: newPlayerFactory()})
	r.register(Backend{Name: "a", Priority: 10, Recorder: newRecorderFactory()})
	r.register(Backend{Name: "d", Priority: 50, Player: newPlayerFactory()})

	require.Equal(t, []string{"c", "a", "b"}, backendNames(r.recorders()))
	require.Equal(t, []string{"c", "d"}, backendNames(r.players()))
}

func TestRegistryInvalid(t *testing.T) {
	r := newRegistry()
	r.register(Backend{Name: "a", Priority: 10, Recorder: newRecorderFactory()})
	require.Panics(t, func() {
		r.register(Backend{Name: "a", Priority: 20, Player: newPlayerFactory()})
	})
	require.Panics(t, func() {
		r.register(Backend{Priority: 20, Player: newPlayerFactory()})
	})
	require.Panics(t, func() {
		r.register(Backend{Name: "b", Priority: 20})
	})
}

func TestRegistryRestrict(t *testing.T) {
	r := newRegistry()
	r.register(Backend{Name: "pulse", Priority: 100, Recorder: newRecorderFactory(), Player: newPlayerFactory()})
	r.register(Backend{Name: "malgo", Priority: 40, Recorder: newRecorderFactory()})

	require.NoError(t, r.restrict([]string{"malgo"}))
	require.Equal(t, []string{"malgo"}, backendNames(r.recorders()))
	require.Empty(t, r.players())

	require.Error(t, r.restrict([]string{"alsa"}))
	require.Equal(t, []string{"malgo"}, backendNames(r.recorders()))

	require.NoError(t, r.restrict(nil))
	require.Equal(t, []string{"pulse", "malgo"}, backendNames(r.recorders()))
}
