package autosync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/lyricsync/pkg/audio/graph"
)

func TestOutcomeErr(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		o := success(0.3, 0.9, Diagnostics{AttemptID: "a"})
		assert.NoError(t, o.Err())
	})

	t.Run("failure", func(t *testing.T) {
		o := failure(ReasonMicDenied, "no access", graph.ErrPermissionDenied, Diagnostics{AttemptID: "b"})
		err := o.Err()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMicDenied)
		assert.ErrorIs(t, err, graph.ErrPermissionDenied)
		assert.NotErrorIs(t, err, ErrLowSignal)
		assert.Equal(t, "mic-denied: no access: "+graph.ErrPermissionDenied.Error(), err.Error())

		var syncErr *Error
		require.True(t, errors.As(err, &syncErr))
		assert.Equal(t, ReasonMicDenied, syncErr.Reason)
		assert.Equal(t, "b", syncErr.Diagnostics.AttemptID)
	})

	t.Run("without_cause", func(t *testing.T) {
		err := failure(ReasonLowSignal, "silence", nil, Diagnostics{}).Err()
		assert.Equal(t, "low-signal: silence", err.Error())
		assert.ErrorIs(t, err, ErrLowSignal)
	})
}

func TestReasonsHaveSentinels(t *testing.T) {
	for _, reason := range []Reason{
		ReasonAudioNotReady,
		ReasonMicDenied,
		ReasonCaptureUnsupported,
		ReasonCaptureTimeout,
		ReasonCaptureFailed,
		ReasonLowSignal,
		ReasonNoCorrelation,
		ReasonBusy,
		ReasonCanceled,
		ReasonInvalidConfig,
	} {
		sentinel, ok := reasonErrors[reason]
		require.True(t, ok, reason)
		assert.Equal(t, string(reason), sentinel.Error())
	}
}
