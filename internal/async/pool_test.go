package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(nil, WithWorkers(2), WithQueueSize(8))

	var ran atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		last := i == 4
		err := p.Submit(context.Background(), func(ctx context.Context) {
			ran.Add(1)
			if last {
				close(done)
			}
		})
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Shutdown(ctx)
	assert.Equal(t, int32(5), ran.Load())
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Shutdown(ctx)

	err := p.Submit(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestPoolShutdownDrains(t *testing.T) {
	p := NewPool(nil, WithWorkers(1), WithQueueSize(4))

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Shutdown(ctx)
	assert.Equal(t, int32(3), ran.Load())
}

func TestPoolTaskContextTimeout(t *testing.T) {
	p := NewPool(nil, WithWorkers(1), WithTaskTimeout(10*time.Millisecond))

	expired := make(chan bool, 1)
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		select {
		case <-ctx.Done():
			expired <- true
		case <-time.After(time.Second):
			expired <- false
		}
	}))

	select {
	case ok := <-expired:
		assert.True(t, ok, "task context should expire")
	case <-time.After(2 * time.Second):
		t.Fatal("task never observed its context")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Shutdown(ctx)
}
