// Package registry keeps the list of available audio backends, so that
// the best working one could be picked automatically.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

type PlayerPCMFactory interface {
	NewPlayerPCM() (types.PlayerPCM, error)
}

type RecorderPCMFactory interface {
	NewRecorderPCM() (types.RecorderPCM, error)
}

// PlayerPCMFactoryFunc adapts a constructor to PlayerPCMFactory.
type PlayerPCMFactoryFunc func() (types.PlayerPCM, error)

func (fn PlayerPCMFactoryFunc) NewPlayerPCM() (types.PlayerPCM, error) {
	return fn()
}

// RecorderPCMFactoryFunc adapts a constructor to RecorderPCMFactory.
type RecorderPCMFactoryFunc func() (types.RecorderPCM, error)

func (fn RecorderPCMFactoryFunc) NewRecorderPCM() (types.RecorderPCM, error) {
	return fn()
}

// Backend describes an audio backend. A backend that cannot play (or
// cannot record) leaves the respective factory nil.
type Backend struct {
	Name     string
	Priority int
	Player   PlayerPCMFactory
	Recorder RecorderPCMFactory
}

// Entry is a factory together with the name of the backend it belongs to.
type Entry[F any] struct {
	Backend  string
	Priority int
	Factory  F
}

type registry struct {
	locker   sync.Mutex
	backends map[string]Backend
	allowed  map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		backends: map[string]Backend{},
	}
}

func (r *registry) register(backend Backend) {
	if backend.Name == "" {
		panic(fmt.Errorf("an audio backend without a name: %#+v", backend))
	}
	if backend.Player == nil && backend.Recorder == nil {
		panic(fmt.Errorf("audio backend '%s' neither plays nor records", backend.Name))
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if _, ok := r.backends[backend.Name]; ok {
		panic(fmt.Errorf("there is already registered an audio backend '%s'", backend.Name))
	}
	r.backends[backend.Name] = backend
}

func (r *registry) restrict(names []string) error {
	r.locker.Lock()
	defer r.locker.Unlock()
	if len(names) == 0 {
		r.allowed = nil
		return nil
	}
	allowed := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := r.backends[name]; !ok {
			return fmt.Errorf("unknown audio backend '%s', known: %v", name, r.namesLocked())
		}
		allowed[name] = struct{}{}
	}
	r.allowed = allowed
	return nil
}

func (r *registry) namesLocked() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sorted returns the allowed backends ordered by priority (the highest
// first); equal priorities are ordered by name to keep the order stable.
func (r *registry) sorted() []Backend {
	r.locker.Lock()
	items := make([]Backend, 0, len(r.backends))
	for name, backend := range r.backends {
		if r.allowed != nil {
			if _, ok := r.allowed[name]; !ok {
				continue
			}
		}
		items = append(items, backend)
	}
	r.locker.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].Name < items[j].Name
	})
	return items
}

func (r *registry) players() []Entry[PlayerPCMFactory] {
	var result []Entry[PlayerPCMFactory]
	for _, backend := range r.sorted() {
		if backend.Player == nil {
			continue
		}
		result = append(result, Entry[PlayerPCMFactory]{
			Backend:  backend.Name,
			Priority: backend.Priority,
			Factory:  backend.Player,
		})
	}
	return result
}

func (r *registry) recorders() []Entry[RecorderPCMFactory] {
	var result []Entry[RecorderPCMFactory]
	for _, backend := range r.sorted() {
		if backend.Recorder == nil {
			continue
		}
		result = append(result, Entry[RecorderPCMFactory]{
			Backend:  backend.Name,
			Priority: backend.Priority,
			Factory:  backend.Recorder,
		})
	}
	return result
}

var global = newRegistry()

// Register adds an audio backend. It is supposed to be called from the
// init() of the backend package and panics on an invalid or duplicate backend.
func Register(backend Backend) {
	global.register(backend)
}

// Restrict limits the auto-selection to the backends of the given names.
// An empty list removes the limitation.
func Restrict(names ...string) error {
	return global.restrict(names)
}

// Names returns the names of all the registered backends.
func Names() []string {
	global.locker.Lock()
	defer global.locker.Unlock()
	return global.namesLocked()
}

func PlayerFactories() []Entry[PlayerPCMFactory] {
	return global.players()
}

func RecorderFactories() []Entry[RecorderPCMFactory] {
	return global.recorders()
}
