package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/lyricsync/pkg/audio/registry"
)

type pingCloser interface {
	io.Closer
	Ping(context.Context) error
}

// lastSuccessful remembers the backend that worked the last time,
// so that the next auto-selection tries it first.
type lastSuccessful[F any] struct {
	locker sync.Mutex
	entry  registry.Entry[F]
	isSet  bool
}

func (l *lastSuccessful[F]) get() (registry.Entry[F], bool) {
	l.locker.Lock()
	defer l.locker.Unlock()
	return l.entry, l.isSet
}

func (l *lastSuccessful[F]) set(entry registry.Entry[F]) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.entry = entry
	l.isSet = true
}

func pickBackend[B pingCloser, F any](
	ctx context.Context,
	kind string,
	last *lastSuccessful[F],
	entries []registry.Entry[F],
	newBackend func(F) (B, error),
) (B, error) {
	if entry, ok := last.get(); ok && containsBackend(entries, entry.Backend) {
		backend, err := newBackend(entry.Factory)
		if err == nil {
			if err := backend.Ping(ctx); err == nil {
				return backend, nil
			}
			_ = backend.Close()
		}
	}

	var mErr *multierror.Error
	for _, entry := range entries {
		backend, err := newBackend(entry.Factory)
		logger.Debugf(ctx, "initializing %s '%s' result is %v", kind, entry.Backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize '%s': %w", entry.Backend, err))
			continue
		}

		err = backend.Ping(ctx)
		logger.Debugf(ctx, "pinging %s '%s' result is %v", kind, entry.Backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping '%s': %w", entry.Backend, err))
			_ = backend.Close()
			continue
		}

		last.set(entry)
		return backend, nil
	}

	var zero B
	if mErr == nil {
		return zero, fmt.Errorf("no %s backends are registered", kind)
	}
	return zero, mErr.ErrorOrNil()
}

func containsBackend[F any](entries []registry.Entry[F], name string) bool {
	for _, entry := range entries {
		if entry.Backend == name {
			return true
		}
	}
	return false
}
