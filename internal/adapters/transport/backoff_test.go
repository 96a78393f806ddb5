package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_Grows(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)
	ctx := context.Background()

	require.Equal(t, time.Millisecond, b.Current())
	require.NoError(t, b.Wait(ctx))
	require.Equal(t, 2*time.Millisecond, b.Current())
	require.NoError(t, b.Wait(ctx))
	require.NoError(t, b.Wait(ctx))
	require.Equal(t, 4*time.Millisecond, b.Current())

	b.Reset()
	require.Equal(t, time.Millisecond, b.Current())
}

func TestBackoff_Cancelled(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.Wait(ctx), context.Canceled)
}
