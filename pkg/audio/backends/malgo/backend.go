package malgo

import (
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

// BackendName is the name the backend is registered under.
const BackendName = "malgo"

// the last resort recorder
const priority = 40

func init() {
	registry.Register(registry.Backend{
		Name:     BackendName,
		Priority: priority,
		Recorder: registry.RecorderPCMFactoryFunc(func() (types.RecorderPCM, error) {
			r, err := NewRecorderPCM()
			if err != nil {
				return nil, err
			}
			return r, nil
		}),
	})
}
