package scheduled

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshuarubin/iostream/internal/plimit"
	"github.com/joshuarubin/iostream/internal/xlog"
	"github.com/joshuarubin/iostream/pkg/executor"
)

// Options configures an Executor. Use DefaultOptions to get the documented
// shutdown-policy defaults; the zero value disables both
// ExecuteDelayedAfterShutdown and ContinuePeriodicAfterShutdown, which is
// the more conservative but non-default combination.
type Options struct {
	// CoreSize is the number of worker goroutines draining the delay
	// queue.
	CoreSize int32

	// ContinuePeriodicAfterShutdown, if false (the default), cancels and
	// removes every periodic task at Shutdown instead of letting it keep
	// re-triggering.
	ContinuePeriodicAfterShutdown bool

	// ExecuteDelayedAfterShutdown, if true (the documented default via
	// DefaultOptions), lets already-scheduled one-shot tasks still fire
	// after Shutdown. If false, any one-shot task whose trigger has not
	// yet elapsed is cancelled and removed at Shutdown.
	ExecuteDelayedAfterShutdown bool

	// RemoveOnCancel, if true, removes a cancelled task from the heap
	// immediately instead of leaving it to be swept out lazily.
	RemoveOnCancel bool
}

// DefaultOptions returns Options with coreSize workers and the documented
// defaults: periodic tasks stop at shutdown, delayed one-shot tasks still
// fire.
func DefaultOptions(coreSize int32) Options {
	return Options{
		CoreSize:                      coreSize,
		ContinuePeriodicAfterShutdown: false,
		ExecuteDelayedAfterShutdown:   true,
	}
}

// Executor runs one-shot and periodic tasks at their scheduled times using
// a DelayQueue as its work queue, drained by a small fixed pool of worker
// goroutines. It reuses executor.Future for the completion state machine,
// cancellation and Get/GetTimeout; what it adds is the trigger-time
// ordering and periodic re-triggering on top.
type Executor struct {
	opts  Options
	queue *DelayQueue

	state atomic.Int32

	hardCtx    context.Context
	hardCancel context.CancelFunc

	wg          sync.WaitGroup
	termination chan struct{}

	log zerolog.Logger
}

// NewExecutor starts opts.CoreSize worker goroutines and returns the
// running Executor.
func NewExecutor(opts Options) (*Executor, error) {
	if opts.CoreSize <= 0 {
		return nil, fmt.Errorf("%w: core size must be > 0", executor.ErrIllegalArgument)
	}

	hardCtx, hardCancel := context.WithCancel(context.Background())

	e := &Executor{
		opts:        opts,
		queue:       NewDelayQueue(),
		hardCtx:     hardCtx,
		hardCancel:  hardCancel,
		termination: make(chan struct{}),
		log:         xlog.Component("scheduled"),
	}
	e.state.Store(int32(executor.Running))

	for i := int32(0); i < opts.CoreSize; i++ {
		e.wg.Add(1)
		go e.workerLoop()
	}

	go func() {
		e.wg.Wait()
		e.advanceState(executor.Terminated)
		close(e.termination)
	}()

	return e, nil
}

// NewDefaultExecutor starts an Executor sized to the number of CPUs actually
// available to this process (plimit.DefaultCoreSize) with the documented
// shutdown-policy defaults.
func NewDefaultExecutor() (*Executor, error) {
	return NewExecutor(DefaultOptions(int32(plimit.DefaultCoreSize())))
}

func (e *Executor) runState() executor.RunState {
	return executor.RunState(e.state.Load())
}

// RunState returns the executor's current lifecycle phase.
func (e *Executor) RunState() executor.RunState {
	return e.runState()
}

func (e *Executor) advanceState(target executor.RunState) {
	for {
		old := e.state.Load()
		if executor.RunState(old) >= target {
			return
		}
		if e.state.CompareAndSwap(old, int32(target)) {
			return
		}
	}
}

// Schedule runs work once after delay.
func (e *Executor) Schedule(work executor.Task, delay time.Duration) (*Task, error) {
	return e.schedule(work, delay, 0)
}

// ScheduleAtFixedRate runs work every period, starting after initialDelay.
// If a run overruns period, the next trigger is still initialTrigger + k *
// period; runs never overlap, so a long-running task eats into the next
// interval's start rather than stacking concurrent runs.
func (e *Executor) ScheduleAtFixedRate(work executor.Task, initialDelay, period time.Duration) (*Task, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be > 0", executor.ErrIllegalArgument)
	}
	return e.schedule(work, initialDelay, period)
}

// ScheduleWithFixedDelay runs work repeatedly, waiting delay after each
// run's completion before the next trigger.
func (e *Executor) ScheduleWithFixedDelay(work executor.Task, initialDelay, delay time.Duration) (*Task, error) {
	if delay <= 0 {
		return nil, fmt.Errorf("%w: delay must be > 0", executor.ErrIllegalArgument)
	}
	return e.schedule(work, initialDelay, -delay)
}

func (e *Executor) schedule(work executor.Task, initialDelay, period time.Duration) (*Task, error) {
	if e.runState() != executor.Running {
		return nil, executor.ErrRejectedExecution
	}

	t := newTask(work, time.Now().Add(initialDelay), period, e.opts.RemoveOnCancel)
	e.log.Debug().Str("sched_id", t.ID().String()).Dur("delay", initialDelay).Msg("task scheduled")
	e.queue.Offer(t)
	return t, nil
}

func (e *Executor) workerLoop() {
	defer e.wg.Done()

	for {
		if e.runState() >= executor.Stop {
			return
		}
		if e.runState() >= executor.Shutdown && e.queue.Len() == 0 {
			return
		}

		t, ok := e.queue.Take(e.hardCtx)
		if !ok {
			continue
		}

		e.runOne(t)
	}
}

// missedDeadlineThreshold is how far past its trigger a task must be found
// at run time before a warning is logged; ordinary scheduling jitter is well
// under this.
const missedDeadlineThreshold = 100 * time.Millisecond

func (e *Executor) runOne(t *Task) {
	if t.IsCancelled() {
		return
	}

	if lag := -t.Delay(); lag > missedDeadlineThreshold {
		e.log.Warn().Str("sched_id", t.ID().String()).Dur("lag", lag).Msg("task ran past its scheduled trigger")
	}

	if !t.IsPeriodic() {
		t.Future.Run()
		return
	}

	if !t.RunAndReset() {
		return
	}

	t.advance()

	if e.runState() == executor.Running || e.opts.ContinuePeriodicAfterShutdown {
		e.queue.Offer(t)
	}
}

// Shutdown stops accepting new tasks and applies the shutdown policy flags
// to whatever is currently enqueued, then lets the workers drain whatever
// survives. Idempotent.
func (e *Executor) Shutdown() {
	e.advanceState(executor.Shutdown)

	for _, t := range e.queue.Snapshot() {
		remove := false
		switch {
		case t.IsPeriodic():
			remove = !e.opts.ContinuePeriodicAfterShutdown
		case !e.opts.ExecuteDelayedAfterShutdown && t.Delay() > 0:
			remove = true
		}
		if remove {
			t.Future.Cancel(false)
			e.queue.Remove(t)
		}
	}
}

// ShutdownNow stops accepting new tasks, aborts any worker currently
// blocked waiting on the delay queue, and drains the queue without running
// its contents, returning the tasks left unexecuted. In-flight runs are not
// aborted. Idempotent.
func (e *Executor) ShutdownNow() []executor.Task {
	e.advanceState(executor.Stop)
	e.hardCancel()

	drained := e.queue.Drain()
	tasks := make([]executor.Task, 0, len(drained))
	for _, t := range drained {
		t.Future.Cancel(false)
		tasks = append(tasks, t.work)
	}
	return tasks
}

// AwaitTermination blocks until every worker goroutine has exited or ctx is
// done, whichever comes first.
func (e *Executor) AwaitTermination(ctx context.Context) error {
	select {
	case <-e.termination:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
