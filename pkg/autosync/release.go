package autosync

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

type releaseAction struct {
	Description string
	Func        func() error
}

// releaser is a stack of release actions of the resources acquired
// during an attempt.
type releaser struct {
	locker  sync.Mutex
	actions []releaseAction
}

func (r *releaser) push(description string, fn func() error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.actions = append(r.actions, releaseAction{
		Description: description,
		Func:        fn,
	})
}

// releaseAll runs every pushed action in the reverse order, even if some
// of them fail, and forgets them.
func (r *releaser) releaseAll(ctx context.Context) error {
	r.locker.Lock()
	actions := r.actions
	r.actions = nil
	r.locker.Unlock()

	var mErr *multierror.Error
	for i := len(actions) - 1; i >= 0; i-- {
		action := actions[i]
		logger.Tracef(ctx, "release: %s", action.Description)
		if err := action.Func(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to %s: %w", action.Description, err))
		}
	}
	return mErr.ErrorOrNil()
}
