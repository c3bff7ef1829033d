package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoolCreation tests pool initialization
func TestPoolCreation(t *testing.T) {
	pool := NewPool(&Config{Workers: 3, QueueSize: 10})
	require.NotNil(t, pool)
	assert.Equal(t, 3, pool.workers)
	assert.Equal(t, 3, cap(pool.semaphore))

	require.NoError(t, pool.Shutdown(time.Second))
	require.NoError(t, pool.Shutdown(time.Second))
}

// TestPoolSubmitSync tests synchronous job execution
func TestPoolSubmitSync(t *testing.T) {
	pool := NewPool(DefaultConfig())
	defer pool.Shutdown(5 * time.Second)

	result, err := pool.SubmitSync(context.Background(), func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result.Value)

	boom := errors.New("boom")
	_, err = pool.SubmitSync(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = pool.SubmitSync(context.Background(), func(ctx context.Context) (interface{}, error) {
		panic("bad job")
	})
	assert.ErrorContains(t, err, "panicked")

	m := pool.Metrics()
	assert.Equal(t, int64(3), m.Total)
	assert.Equal(t, int64(1), m.CompletedOK)
	assert.Equal(t, int64(2), m.CompletedError)
}

// TestPoolConcurrencyLimit tests that MaxConcurrent bounds parallel jobs
func TestPoolConcurrencyLimit(t *testing.T) {
	pool := NewPool(&Config{Workers: 8, QueueSize: 100, MaxConcurrent: 2})
	defer pool.Shutdown(5 * time.Second)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.SubmitSync(context.Background(), func(ctx context.Context) (interface{}, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(10), pool.Metrics().CompletedOK)
}

// TestPoolClosed tests submission after shutdown
func TestPoolClosed(t *testing.T) {
	pool := NewPool(&Config{Workers: 1, QueueSize: 1})
	require.NoError(t, pool.Shutdown(time.Second))

	_, err := pool.SubmitSync(context.Background(), func(ctx context.Context) (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}
