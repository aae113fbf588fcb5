package oto

import (
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

// BackendName is the name the backend is registered under.
const BackendName = "oto"

// playback only
const priority = 50

func init() {
	registry.Register(registry.Backend{
		Name:     BackendName,
		Priority: priority,
		Player: registry.PlayerPCMFactoryFunc(func() (types.PlayerPCM, error) {
			p, err := NewPlayerPCM()
			if err != nil {
				return nil, err
			}
			return p, nil
		}),
	})
}
