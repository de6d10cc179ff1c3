package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("room:1")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.Len())
}

func TestKeyed_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyed_TryLock(t *testing.T) {
	k := NewKeyed()
	unlock, ok := k.TryLock("reservation:7")
	require.True(t, ok)

	_, ok = k.TryLock("reservation:7")
	assert.False(t, ok)

	unlock()
	unlock2, ok := k.TryLock("reservation:7")
	require.True(t, ok)
	unlock2()
	assert.Equal(t, 0, k.Len())
}
