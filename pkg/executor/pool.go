package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshuarubin/iostream/internal/xlog"
)

// Options configures a Pool. It mirrors the teacher's worker.Config: a
// plain struct validated once at construction time.
type Options struct {
	// CoreSize is the number of workers kept alive even when idle (unless
	// AllowCoreTimeout is set).
	CoreSize int32

	// MaxSize is the upper bound on live workers. Must be >= CoreSize.
	MaxSize int32

	// KeepAlive is how long a worker above CoreSize (or, if
	// AllowCoreTimeout, any idle worker) waits for a task before retiring.
	KeepAlive time.Duration

	// QueueCapacity bounds the work queue; <= 0 means unbounded.
	QueueCapacity int

	// AllowCoreTimeout lets core workers retire after KeepAlive idle time.
	AllowCoreTimeout bool

	// Rejection is invoked when a task cannot be accepted. Defaults to
	// AbortPolicy.
	Rejection RejectionPolicy

	// BeforeExecute, AfterExecute and Terminated are optional hooks.
	// AfterExecute receives the task's error if it completed
	// exceptionally (nil otherwise, including for cancellation).
	BeforeExecute func(f *Future)
	AfterExecute  func(f *Future, err error)
	Terminated    func()
}

// Pool is a worker-pool task executor: a bounded or unbounded queue feeding
// a set of goroutines whose count floats between CoreSize and MaxSize.
// Grounded on the teacher's atomic-status job.Job, generalized from a single
// CAS'd status word to the packed (run-state, worker-count) control word
// this design calls for.
type Pool struct {
	ctl ctl

	mu                 sync.Mutex // guards workers set + completedTaskCount
	workers            map[*worker]struct{}
	completedTaskCount uint64

	queue *taskQueue

	coreSize         int32
	maxSize          int32
	keepAlive        time.Duration
	allowCoreTimeout bool

	rejection RejectionPolicy

	beforeExecute func(f *Future)
	afterExecute  func(f *Future, err error)
	terminated    func()

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	termination chan struct{}

	log zerolog.Logger
}

// New constructs a Pool from opts.
func New(opts Options) (*Pool, error) {
	if opts.CoreSize < 0 {
		return nil, fmt.Errorf("%w: core size must be >= 0", ErrIllegalArgument)
	}
	if opts.MaxSize <= 0 || opts.MaxSize < opts.CoreSize {
		return nil, fmt.Errorf("%w: max size must be > 0 and >= core size", ErrIllegalArgument)
	}
	if opts.KeepAlive < 0 {
		return nil, fmt.Errorf("%w: keep alive must be >= 0", ErrIllegalArgument)
	}
	if opts.AllowCoreTimeout && opts.KeepAlive <= 0 {
		return nil, fmt.Errorf("%w: allow core timeout requires a positive keep alive", ErrIllegalArgument)
	}

	rejection := opts.Rejection
	if rejection == nil {
		rejection = AbortPolicy
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:          map[*worker]struct{}{},
		queue:            newTaskQueue(opts.QueueCapacity),
		coreSize:         opts.CoreSize,
		maxSize:          opts.MaxSize,
		keepAlive:        opts.KeepAlive,
		allowCoreTimeout: opts.AllowCoreTimeout,
		rejection:        rejection,
		beforeExecute:    opts.BeforeExecute,
		afterExecute:     opts.AfterExecute,
		terminated:       opts.Terminated,
		shutdownCtx:      shutdownCtx,
		shutdownCancel:   shutdownCancel,
		termination:      make(chan struct{}),
		log:              xlog.Component("executor"),
	}
	p.ctl.init(Running, 0)

	return p, nil
}

func (p *Pool) runState() RunState {
	return p.ctl.runState()
}

// RunState returns the pool's current lifecycle phase.
func (p *Pool) RunState() RunState {
	return p.runState()
}

// Execute submits task for asynchronous execution without returning a
// handle to its outcome. Any rejection is returned directly.
func (p *Pool) Execute(ctx context.Context, task Task) error {
	f := NewFuture(ctx, task)
	return p.execute(f)
}

// Submit wraps task in a Future and schedules it. If the task cannot be
// enqueued at all, the rejection error is returned directly rather than
// wrapped in a Future.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	f := NewFuture(ctx, task)
	if err := p.execute(f); err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitFunc is a convenience wrapper of Submit for a plain function.
func (p *Pool) SubmitFunc(ctx context.Context, fn func(context.Context) (any, error)) (*Future, error) {
	return p.Submit(ctx, TaskFunc(fn))
}

// InvokeAll submits every task and blocks until all complete (successfully,
// exceptionally, or cancelled) or ctx is done.
func (p *Pool) InvokeAll(ctx context.Context, tasks []Task) ([]*Future, error) {
	futures := make([]*Future, len(tasks))
	for i, t := range tasks {
		f, err := p.Submit(ctx, t)
		if err != nil {
			for _, prior := range futures[:i] {
				if prior != nil {
					prior.Cancel(true)
				}
			}
			return nil, err
		}
		futures[i] = f
	}

	// Wait for every future to reach a terminal state. Per-task outcomes
	// (success, cancellation, exceptional completion) are left on each
	// Future for the caller to inspect; only a failure of the wait itself
	// (deadline, caller cancellation) aborts early.
	for _, f := range futures {
		if f.IsDone() || f.IsCancelled() {
			continue
		}
		if _, err := f.Get(ctx); err != nil {
			var execErr *ExecutionError
			if !errors.As(err, &execErr) && !errors.Is(err, ErrCancelled) {
				return futures, err
			}
		}
	}

	return futures, nil
}

// InvokeAny submits every task and returns the result of the first one to
// complete successfully, cancelling the rest. If every task fails or is
// cancelled, the last error observed is returned.
func (p *Pool) InvokeAny(ctx context.Context, tasks []Task) (any, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrIllegalArgument)
	}

	futures := make([]*Future, len(tasks))
	for i, t := range tasks {
		f, err := p.Submit(ctx, t)
		if err != nil {
			for _, prior := range futures[:i] {
				if prior != nil {
					prior.Cancel(true)
				}
			}
			return nil, err
		}
		futures[i] = f
	}

	type outcome struct {
		val any
		err error
	}
	results := make(chan outcome, len(futures))
	for _, f := range futures {
		go func(f *Future) {
			v, err := f.Get(ctx)
			results <- outcome{v, err}
		}(f)
	}

	var lastErr error
	for range futures {
		o := <-results
		if o.err == nil {
			for _, f := range futures {
				f.Cancel(true)
			}
			return o.val, nil
		}
		lastErr = o.err
	}

	return nil, lastErr
}

// Shutdown advances the run-state to SHUTDOWN: no new tasks are accepted,
// but the queue continues draining. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.ctl.advanceRunState(Shutdown)
	p.mu.Unlock()

	p.shutdownCancel()
	p.tryTerminate()
}

// ShutdownNow advances the run-state to STOP, interrupts every started
// worker (both idle workers blocked on the queue and workers currently
// running a task), and drains the queue without running its contents,
// returning the tasks that were left unexecuted.
func (p *Pool) ShutdownNow() []Task {
	p.mu.Lock()
	p.ctl.advanceRunState(Stop)
	p.mu.Unlock()

	p.shutdownCancel()

	p.mu.Lock()
	for w := range p.workers {
		if f := w.current.Load(); f != nil {
			f.Cancel(true)
		}
	}
	p.mu.Unlock()

	drained := p.queue.drain()
	tasks := make([]Task, 0, len(drained))
	for _, f := range drained {
		f.Cancel(false)
		if f.task != nil {
			tasks = append(tasks, f.task)
		}
	}

	p.tryTerminate()
	return tasks
}

// AwaitTermination blocks until the pool reaches TERMINATED or ctx is done.
func (p *Pool) AwaitTermination(ctx context.Context) error {
	select {
	case <-p.termination:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute implements the dispatch policy described in the worker-pool
// design: try a core worker, then the queue, then a non-core worker, then
// reject.
func (p *Pool) execute(item *Future) error {
	rs, wc := p.ctl.load()

	if wc < p.coreSize {
		if p.addWorker(item, true) {
			return nil
		}
		rs, _ = p.ctl.load()
	}

	if isRunning(rs) && p.queue.tryEnqueue(item) {
		rs2, wc2 := p.ctl.load()
		if !isRunning(rs2) && p.queue.remove(item) {
			return p.reject(item)
		}
		if wc2 == 0 {
			p.addWorker(nil, false)
		}
		return nil
	}

	if !p.addWorker(item, false) {
		return p.reject(item)
	}
	return nil
}

func (p *Pool) reject(item *Future) error {
	return p.rejection(p, item)
}

func (p *Pool) addWorker(firstTask *Future, core bool) bool {
	for {
		rs, wc := p.ctl.load()

		if rs >= Shutdown && !(rs == Shutdown && firstTask == nil && !p.queue.isEmpty()) {
			return false
		}

		limit := p.maxSize
		if core {
			limit = p.coreSize
		}
		if wc >= limit {
			return false
		}
		if p.ctl.compareAndIncrementWorkerCountFrom(rs, wc) {
			break
		}
	}

	w := &worker{pool: p, firstTask: firstTask}

	p.mu.Lock()
	rs := p.runState()
	started := rs < Shutdown || (rs == Shutdown && firstTask == nil)
	if started {
		p.workers[w] = struct{}{}
	}
	p.mu.Unlock()

	if !started {
		p.ctl.decrementWorkerCount()
		p.tryTerminate()
		return false
	}

	p.log.Debug().Int("workers", int(p.ctl.workerCount())).Msg("worker started")
	go w.run()
	return true
}

// getTask implements the worker idle loop: pull from the queue, applying
// timeout eligibility and retiring the worker when appropriate.
func (p *Pool) getTask() (*Future, bool) {
	timedOut := false

	for {
		rs, wc := p.ctl.load()

		if rs >= Shutdown && (rs >= Stop || p.queue.isEmpty()) {
			p.ctl.decrementWorkerCount()
			return nil, false
		}

		timed := p.allowCoreTimeout || wc > p.coreSize

		if (wc > p.maxSize || (timed && timedOut)) && (wc > 1 || p.queue.isEmpty()) {
			if p.ctl.compareAndDecrementWorkerCountFrom(rs, wc) {
				return nil, false
			}
			continue
		}

		var wait time.Duration
		if timed {
			wait = p.keepAlive
		}

		item, ok := p.queue.take(p.shutdownCtx, wait)
		if ok {
			return item, true
		}
		timedOut = true
	}
}

func (p *Pool) runTask(f *Future) {
	if p.beforeExecute != nil {
		p.beforeExecute(f)
	}

	p.log.Debug().Str("task_id", f.ID().String()).Msg("running task")
	f.Run()

	var hookErr error
	if f.State() == StateExceptional {
		hookErr = f.err
		p.log.Error().Str("task_id", f.ID().String()).Err(hookErr).Msg("task completed exceptionally")
	}

	if p.afterExecute != nil {
		p.afterExecute(f, hookErr)
	}
}

func (p *Pool) workerExit(w *worker, completed uint64, abrupt bool) {
	if abrupt {
		p.ctl.decrementWorkerCount()
	}

	p.mu.Lock()
	p.completedTaskCount += completed
	delete(p.workers, w)
	p.mu.Unlock()

	p.log.Debug().Uint64("completed", completed).Bool("abrupt", abrupt).Msg("worker exited")

	p.tryTerminate()

	if p.runState() < Stop {
		min := int32(0)
		if !p.allowCoreTimeout {
			min = p.coreSize
		}
		if min == 0 && !p.queue.isEmpty() {
			min = 1
		}
		if p.ctl.workerCount() >= min {
			return
		}
		p.addWorker(nil, false)
	}
}

// tryTerminate advances SHUTDOWN/STOP to TIDYING then TERMINATED once the
// queue is empty (or the run-state is STOP) and no workers remain.
func (p *Pool) tryTerminate() {
	for {
		rs := p.runState()
		if isRunning(rs) || rs >= Tidying || (rs == Shutdown && !p.queue.isEmpty()) {
			return
		}
		if p.ctl.workerCount() != 0 {
			return
		}

		p.mu.Lock()
		if p.runState() != rs {
			p.mu.Unlock()
			continue
		}
		p.ctl.advanceRunState(Tidying)
		p.mu.Unlock()

		if p.terminated != nil {
			p.terminated()
		}

		p.ctl.advanceRunState(Terminated)
		p.log.Debug().Msg("pool terminated")
		close(p.termination)
		return
	}
}
