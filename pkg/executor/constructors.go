package executor

import (
	"time"

	"github.com/joshuarubin/iostream/internal/plimit"
)

// defaultKeepAlive is how long NewCachedPool's workers, all of them non-core,
// wait idle for a task before retiring.
const defaultKeepAlive = 60 * time.Second

// NewFixedPool returns a Pool with n core and max workers, an unbounded
// queue, and the abort rejection policy: a classic fixed-size thread pool.
func NewFixedPool(n int32) (*Pool, error) {
	return New(Options{
		CoreSize:  n,
		MaxSize:   n,
		KeepAlive: 0,
	})
}

// NewCachedPool returns a Pool with no core workers, an effectively
// unbounded max, a 60s keep-alive, and a minimally-bounded queue
// approximating a synchronous handoff: once the one slot is occupied,
// execute's dispatch policy falls through to starting another worker
// instead of piling tasks up, so the pool grows to meet concurrent demand
// and shrinks back down once work dries up.
func NewCachedPool() (*Pool, error) {
	return New(Options{
		CoreSize:      0,
		MaxSize:       1<<31 - 1,
		KeepAlive:     defaultKeepAlive,
		QueueCapacity: 1,
	})
}

// NewSingleWorkerPool returns a Pool backed by exactly one worker, so that
// submitted tasks execute strictly in submission order.
func NewSingleWorkerPool() (*Pool, error) {
	return New(Options{
		CoreSize: 1,
		MaxSize:  1,
	})
}

// NewDefaultFixedPool is NewFixedPool sized to the number of CPUs actually
// available to this process (plimit.DefaultCoreSize), rather than a
// caller-chosen n.
func NewDefaultFixedPool() (*Pool, error) {
	return NewFixedPool(int32(plimit.DefaultCoreSize()))
}

// NewScheduledCorePool returns a Pool shaped for use as the executor behind
// a scheduled task runner: n core workers that never time out, a max equal
// to n and an unbounded queue, matching the fixed-size core the scheduled
// executor's delay queue expects to drain into.
func NewScheduledCorePool(n int32) (*Pool, error) {
	return New(Options{
		CoreSize: n,
		MaxSize:  n,
	})
}
