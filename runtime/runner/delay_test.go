package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

func TestAfterResolvesRelativeToSubmission(t *testing.T) {
	now := time.Now()
	require.Equal(t, now.Add(5*time.Minute), After(5*time.Minute).NotBefore(now))
}

func TestAtResolvesToAbsoluteInstant(t *testing.T) {
	now := time.Now()
	at := now.Add(time.Hour)
	require.Equal(t, at, At(at).NotBefore(now))
}

func TestZeroDelayDispatchesImmediately(t *testing.T) {
	require.True(t, Delay{}.NotBefore(time.Now()).IsZero())
	require.True(t, After(0).NotBefore(time.Now()).IsZero())
}

func TestValidateRejectsNegativeDelay(t *testing.T) {
	err := After(-time.Second).Validate()
	require.True(t, sdkerrors.IsUsageError(err))
	require.Contains(t, err.Error(), "must not be negative")

	require.NoError(t, After(0).Validate())
	require.NoError(t, After(time.Millisecond).Validate())
	require.NoError(t, At(time.Now().Add(-time.Hour)).Validate())
}
