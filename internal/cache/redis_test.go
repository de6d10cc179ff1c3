package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLockKey(t *testing.T) {
	assert.Equal(t, "lock:webrtc:reservation:42", sessionLockKey(42))
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	ok, err := l.AcquireSessionLock(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.AcquireSessionLock(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.AcquireSessionLock(ctx, 2, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.ReleaseSessionLock(ctx, 1))
	ok, err = l.AcquireSessionLock(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, l.ReleaseSessionLock(ctx, 99))
}
