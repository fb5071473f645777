package executor

import "sync/atomic"

// RunState is the lifecycle phase of a Pool. It only ever moves forward.
type RunState uint32

const (
	// Running accepts new tasks and processes the queue.
	Running RunState = iota
	// Shutdown rejects new tasks but continues draining the queue.
	Shutdown
	// Stop rejects new tasks and does not drain the queue.
	Stop
	// Tidying means the queue is empty, no workers remain, and the
	// terminated hook is being run.
	Tidying
	// Terminated is the final state.
	Terminated
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Shutdown:
		return "shutdown"
	case Stop:
		return "stop"
	case Tidying:
		return "tidying"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ctl packs RunState into the high 32 bits and the live worker count into
// the low 32 bits of a single word, so that a CAS on ctl atomically changes
// both or observes both consistently. This mirrors the teacher's setStatus
// CAS loop, extended to a two-field word per the packed-control-word design.
type ctl struct {
	word atomic.Uint64
}

func packCtl(rs RunState, workerCount int32) uint64 {
	return uint64(rs)<<32 | uint64(uint32(workerCount)) //nolint:gosec
}

func unpackCtl(v uint64) (RunState, int32) {
	return RunState(v >> 32), int32(uint32(v)) //nolint:gosec
}

func (c *ctl) init(rs RunState, workerCount int32) {
	c.word.Store(packCtl(rs, workerCount))
}

func (c *ctl) load() (RunState, int32) {
	return unpackCtl(c.word.Load())
}

func (c *ctl) runState() RunState {
	rs, _ := c.load()
	return rs
}

func (c *ctl) workerCount() int32 {
	_, wc := c.load()
	return wc
}

// advanceRunState moves the run-state forward to at least target. It is a
// no-op if the current state already meets or exceeds target. Mirrors
// job.Job.setStatus: values only ever move to higher values.
func (c *ctl) advanceRunState(target RunState) {
	for {
		old := c.word.Load()
		rs, wc := unpackCtl(old)
		if rs >= target {
			return
		}
		if c.word.CompareAndSwap(old, packCtl(target, wc)) {
			return
		}
	}
}

// compareAndIncrementWorkerCountFrom attempts to bump the worker count by
// one, but only if the word still matches the (rs, wc) snapshot the caller
// observed; otherwise the caller must reload and retry.
func (c *ctl) compareAndIncrementWorkerCountFrom(rs RunState, wc int32) bool {
	old := packCtl(rs, wc)
	return c.word.CompareAndSwap(old, packCtl(rs, wc+1))
}

// compareAndDecrementWorkerCountFrom is the decrementing counterpart, used
// by getTask when a worker decides to retire itself.
func (c *ctl) compareAndDecrementWorkerCountFrom(rs RunState, wc int32) bool {
	old := packCtl(rs, wc)
	return c.word.CompareAndSwap(old, packCtl(rs, wc-1))
}

func (c *ctl) decrementWorkerCount() {
	for {
		old := c.word.Load()
		rs, wc := unpackCtl(old)
		if c.word.CompareAndSwap(old, packCtl(rs, wc-1)) {
			return
		}
	}
}

func isRunning(rs RunState) bool {
	return rs == Running
}
