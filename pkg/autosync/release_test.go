package autosync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaser(t *testing.T) {
	ctx := context.Background()
	var order []string
	r := &releaser{}
	r.push("first", func() error { order = append(order, "first"); return nil })
	r.push("second", func() error { order = append(order, "second"); return errors.New("boom") })
	r.push("third", func() error { order = append(order, "third"); return nil })

	err := r.releaseAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to second: boom")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	require.NoError(t, r.releaseAll(ctx))
	assert.Len(t, order, 3)
}
