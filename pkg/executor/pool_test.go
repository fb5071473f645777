package executor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/iostream/pkg/executor"
)

func TestFixedPoolRunsSubmittedTasks(t *testing.T) {
	p, err := executor.NewFixedPool(2)
	require.NoError(t, err)
	defer p.Shutdown()

	var ran atomic.Int32
	var futures []*executor.Future
	for i := 0; i < 10; i++ {
		f, err := p.SubmitFunc(context.Background(), func(context.Context) (any, error) {
			ran.Add(1)
			return nil, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	for _, f := range futures {
		_, err := f.Get(context.Background())
		require.NoError(t, err)
	}

	require.Equal(t, int32(10), ran.Load())
}

func TestPoolShutdownDrainsQueueThenTerminates(t *testing.T) {
	p, err := executor.NewFixedPool(1)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		_, err := p.SubmitFunc(context.Background(), func(context.Context) (any, error) {
			ran.Add(1)
			return nil, nil
		})
		require.NoError(t, err)
	}

	p.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.AwaitTermination(ctx))
	require.Equal(t, int32(5), ran.Load())
	require.Equal(t, executor.Terminated, p.RunState())
}

func TestPoolShutdownNowReturnsUnexecutedTasks(t *testing.T) {
	p, err := executor.NewFixedPool(1)
	require.NoError(t, err)

	block := make(chan struct{})
	_, err = p.SubmitFunc(context.Background(), func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	})
	require.NoError(t, err)

	var queued atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := p.SubmitFunc(context.Background(), func(context.Context) (any, error) {
			queued.Add(1)
			return nil, nil
		})
		require.NoError(t, err)
	}

	time.Sleep(10 * time.Millisecond) // let the first task be picked up
	remaining := p.ShutdownNow()
	close(block)

	require.Len(t, remaining, 3)
	require.Equal(t, int32(0), queued.Load())
}

func TestPoolAbortPolicyRejectsWhenFull(t *testing.T) {
	p, err := executor.New(executor.Options{
		CoreSize:      1,
		MaxSize:       1,
		QueueCapacity: 1,
		Rejection:     executor.AbortPolicy,
	})
	require.NoError(t, err)
	defer p.ShutdownNow()

	block := make(chan struct{})
	defer close(block)

	_, err = p.SubmitFunc(context.Background(), func(context.Context) (any, error) {
		<-block
		return nil, nil
	})
	require.NoError(t, err)

	// fills the single queue slot
	_, err = p.SubmitFunc(context.Background(), func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)

	// core and queue both occupied, max already reached: must reject
	_, err = p.SubmitFunc(context.Background(), func(context.Context) (any, error) { return nil, nil })
	require.ErrorIs(t, err, executor.ErrRejectedExecution)
}

func TestPoolCallerRunsPolicyExecutesInline(t *testing.T) {
	p, err := executor.New(executor.Options{
		CoreSize:      1,
		MaxSize:       1,
		QueueCapacity: 1,
		Rejection:     executor.CallerRunsPolicy,
	})
	require.NoError(t, err)
	defer p.ShutdownNow()

	block := make(chan struct{})
	defer close(block)

	_, err = p.SubmitFunc(context.Background(), func(context.Context) (any, error) {
		<-block
		return nil, nil
	})
	require.NoError(t, err)

	_, err = p.SubmitFunc(context.Background(), func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)

	var ranInline atomic.Bool
	f, err := p.Submit(context.Background(), executor.TaskFunc(func(context.Context) (any, error) {
		ranInline.Store(true)
		return nil, nil
	}))
	require.NoError(t, err)
	require.True(t, ranInline.Load(), "caller-runs policy must run synchronously on the submitting goroutine")
	require.True(t, f.IsDone())
}

func TestInvokeAllWaitsForEveryTask(t *testing.T) {
	p, err := executor.NewFixedPool(4)
	require.NoError(t, err)
	defer p.Shutdown()

	var count atomic.Int32
	tasks := make([]executor.Task, 5)
	for i := range tasks {
		tasks[i] = executor.TaskFunc(func(context.Context) (any, error) {
			count.Add(1)
			return nil, nil
		})
	}

	futures, err := p.InvokeAll(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, futures, 5)
	require.Equal(t, int32(5), count.Load())
}

func TestInvokeAnyReturnsFirstSuccess(t *testing.T) {
	p, err := executor.NewFixedPool(3)
	require.NoError(t, err)
	defer p.Shutdown()

	tasks := []executor.Task{
		executor.TaskFunc(func(context.Context) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "slow", nil
		}),
		executor.TaskFunc(func(context.Context) (any, error) {
			return "fast", nil
		}),
	}

	v, err := p.InvokeAny(context.Background(), tasks)
	require.NoError(t, err)
	require.Equal(t, "fast", v)
}
