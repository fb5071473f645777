package executor

import (
	"sync"
	"sync/atomic"
)

// worker is a long-lived goroutine owned by a Pool that pulls Futures from
// its queue and runs them. mu is held for the duration of a task's Run,
// marking the worker busy; Shutdown and ShutdownNow do not consult it, and
// reach idle workers (blocked in getTask) by cancelling the pool's shutdown
// context instead. current holds the Future presently being run (or
// nil, between tasks), so ShutdownNow can reach into a busy worker and
// interrupt it rather than only the queue's still-unexecuted Futures.
type worker struct {
	pool      *Pool
	mu        sync.Mutex
	firstTask *Future
	current   atomic.Pointer[Future]
}

func (w *worker) run() {
	task := w.firstTask
	w.firstTask = nil

	completed := uint64(0)
	// abrupt stays true unless the loop exits cleanly via getTask
	// returning false; getTask already decremented the worker count on
	// that path, so workerExit must not double-decrement. A panic escaping
	// runTask (e.g. from a hook) leaves abrupt true and workerExit accounts
	// for the still-live count.
	abrupt := true
	defer func() {
		w.pool.workerExit(w, completed, abrupt)
	}()

	for {
		if task == nil {
			var ok bool
			task, ok = w.pool.getTask()
			if !ok {
				abrupt = false
				return
			}
		}

		w.mu.Lock()
		w.current.Store(task)
		w.pool.runTask(task)
		w.current.Store(nil)
		w.mu.Unlock()

		completed++
		task = nil
	}
}
