package portaudio

import (
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

// BackendName is the name the backend is registered under.
const BackendName = "portaudio"

const priority = 60

func init() {
	registry.Register(registry.Backend{
		Name:     BackendName,
		Priority: priority,
		Player:   registry.PlayerPCMFactoryFunc(newPlayer),
		Recorder: registry.RecorderPCMFactoryFunc(newRecorder),
	})
}

func newPlayer() (types.PlayerPCM, error) {
	p, err := NewPlayerPCM()
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newRecorder() (types.RecorderPCM, error) {
	r, err := NewRecorderPCM()
	if err != nil {
		return nil, err
	}
	return r, nil
}
