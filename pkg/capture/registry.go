package capture

import (
	"context"
	"strings"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
	"golang.org/x/sync/singleflight"
)

// Registry remembers which processor definitions are registered in which
// audio context, so that each one is registered exactly once per context.
type Registry struct {
	locker     sync.Mutex
	registered map[string]struct{}
	group      singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{
		registered: map[string]struct{}{},
	}
}

func registryKey(contextID, processorName string) string {
	return contextID + "\x00" + processorName
}

func (r *Registry) isRegistered(key string) bool {
	r.locker.Lock()
	defer r.locker.Unlock()
	_, ok := r.registered[key]
	return ok
}

// Ensure registers the Batcher definition for the batch size in the
// context unless it is already there, and returns the processor name.
// Concurrent calls for the same context are collapsed into one registration.
func (r *Registry) Ensure(
	ctx context.Context,
	graphCtx graph.Context,
	batchSize int,
) (_ string, _err error) {
	def := NewProcessorDefinition(batchSize)
	key := registryKey(graphCtx.ID(), def.Name)
	if r.isRegistered(key) {
		return def.Name, nil
	}

	logger.Debugf(ctx, "Ensure(%s, %s)", graphCtx.ID(), def.Name)
	defer func() { logger.Debugf(ctx, "/Ensure(%s, %s): %v", graphCtx.ID(), def.Name, _err) }()

	_, err, shared := r.group.Do(key, func() (any, error) {
		if r.isRegistered(key) {
			return nil, nil
		}
		if err := graphCtx.RegisterProcessor(ctx, def); err != nil {
			return nil, err
		}
		r.locker.Lock()
		defer r.locker.Unlock()
		r.registered[key] = struct{}{}
		return nil, nil
	})
	if shared {
		logger.Tracef(ctx, "the registration of '%s' was shared with a concurrent caller", def.Name)
	}
	if err != nil {
		return "", &RegistrationError{ProcessorName: def.Name, Err: err}
	}
	return def.Name, nil
}

// Forget drops everything remembered about the context; to be called
// once the context is closed.
func (r *Registry) Forget(contextID string) {
	r.locker.Lock()
	defer r.locker.Unlock()
	prefix := contextID + "\x00"
	for key := range r.registered {
		if strings.HasPrefix(key, prefix) {
			delete(r.registered, key)
		}
	}
}
