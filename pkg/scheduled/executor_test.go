package scheduled_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/iostream/pkg/executor"
	"github.com/joshuarubin/iostream/pkg/scheduled"
)

func TestScheduleOneShotRuns(t *testing.T) {
	exec, err := scheduled.NewExecutor(scheduled.DefaultOptions(2))
	require.NoError(t, err)
	defer exec.ShutdownNow()

	task, err := exec.Schedule(executor.TaskFunc(func(context.Context) (any, error) {
		return "done", nil
	}), 10*time.Millisecond)
	require.NoError(t, err)

	v, err := task.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

// TestScheduleAtFixedRateUnderLongTask pins period=50ms against a task body
// that sleeps 120ms. Runs must never overlap, and successive triggers must
// stay anchored to the original schedule (initialTrigger + k*period) rather
// than drift to "period after the previous completion" the way
// ScheduleWithFixedDelay would. A fixed-delay implementation would space N
// runs roughly N*(120ms+50ms) apart; fixed-rate keeps them at roughly
// N*120ms once the task has fallen behind the clock.
func TestScheduleAtFixedRateUnderLongTask(t *testing.T) {
	const (
		period  = 50 * time.Millisecond
		work    = 120 * time.Millisecond
		numRuns = 4
	)

	exec, err := scheduled.NewExecutor(scheduled.DefaultOptions(2))
	require.NoError(t, err)
	defer exec.ShutdownNow()

	var (
		mu      sync.Mutex
		starts  []time.Time
		ends    []time.Time
		running bool
		overlap bool
	)

	done := make(chan struct{})

	task, err := exec.ScheduleAtFixedRate(executor.TaskFunc(func(context.Context) (any, error) {
		mu.Lock()
		if running {
			overlap = true
		}
		running = true
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()

		time.Sleep(work)

		mu.Lock()
		running = false
		ends = append(ends, time.Now())
		mu.Unlock()

		if n == numRuns {
			close(done)
		}
		return nil, nil
	}), 0, period)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for fixed-rate runs")
	}

	task.Cancel(false)

	mu.Lock()
	defer mu.Unlock()

	require.False(t, overlap, "fixed-rate runs must not overlap")
	require.Len(t, starts, numRuns)

	total := ends[numRuns-1].Sub(starts[0])
	// Fixed-delay spacing would be roughly numRuns*(work+period); fixed-rate
	// under a long task collapses toward back-to-back runs of `work`.
	require.Less(t, total, time.Duration(numRuns)*(work+period/2))
}

func TestShutdownContinuePeriodicAfterShutdown(t *testing.T) {
	opts := scheduled.DefaultOptions(1)
	opts.ContinuePeriodicAfterShutdown = true
	exec, err := scheduled.NewExecutor(opts)
	require.NoError(t, err)
	defer exec.ShutdownNow()

	var count int32
	var mu sync.Mutex
	task, err := exec.ScheduleAtFixedRate(executor.TaskFunc(func(context.Context) (any, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return nil, nil
	}), 0, 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	exec.Shutdown()

	before := count
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	after := count
	mu.Unlock()

	task.Cancel(false)
	require.Greater(t, after, before, "periodic task should keep running after soft shutdown when configured")
}

func TestShutdownExecuteDelayedAfterShutdownFalse(t *testing.T) {
	opts := scheduled.DefaultOptions(1)
	opts.ExecuteDelayedAfterShutdown = false
	exec, err := scheduled.NewExecutor(opts)
	require.NoError(t, err)
	defer exec.ShutdownNow()

	task, err := exec.Schedule(executor.TaskFunc(func(context.Context) (any, error) {
		return "ran", nil
	}), 200*time.Millisecond)
	require.NoError(t, err)

	exec.Shutdown()

	_, err = task.Get(context.Background())
	require.ErrorIs(t, err, executor.ErrCancelled)
}
