package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsAllTasks(t *testing.T) {
	pool := NewPool(4, nil)
	defer pool.Close()

	var done atomic.Int32
	for i := 0; i < 100; i++ {
		assert.True(t, pool.Submit("count", func(ctx context.Context) error {
			done.Add(1)
			return nil
		}))
	}
	pool.Wait()
	assert.Equal(t, int32(100), done.Load())
}

func TestPool_FailuresAreDropped(t *testing.T) {
	pool := NewPool(2, nil)
	defer pool.Close()

	var after atomic.Bool
	pool.Submit("fail", func(ctx context.Context) error { return errors.New("boom") })
	pool.Submit("panic", func(ctx context.Context) error { panic("boom") })
	pool.Submit("ok", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	pool.Wait()
	assert.True(t, after.Load())
}

func TestPool_NestedSubmitIsAwaited(t *testing.T) {
	pool := NewPool(1, nil)
	defer pool.Close()

	var inner atomic.Bool
	pool.Submit("outer", func(ctx context.Context) error {
		pool.Submit("inner", func(ctx context.Context) error {
			inner.Store(true)
			return nil
		})
		return nil
	})
	pool.Wait()
	assert.True(t, inner.Load())
}

func TestPool_ClosedRejects(t *testing.T) {
	pool := NewPool(1, nil)
	pool.Close()
	assert.False(t, pool.Submit("late", func(ctx context.Context) error { return nil }))
}

func TestPool_WaitConcurrentWithSubmit(t *testing.T) {
	pool := NewPool(2, nil)
	defer pool.Close()

	// idle pool
	pool.Wait()

	var (
		done    atomic.Int32
		waiters sync.WaitGroup
		submits sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		waiters.Add(1)
		go func() {
			defer waiters.Done()
			for j := 0; j < 50; j++ {
				pool.Wait()
			}
		}()
		submits.Add(1)
		go func() {
			defer submits.Done()
			for j := 0; j < 50; j++ {
				pool.Submit("count", func(ctx context.Context) error {
					done.Add(1)
					return nil
				})
			}
		}()
	}
	submits.Wait()
	pool.Wait()
	assert.Equal(t, int32(200), done.Load())
	waiters.Wait()
}
