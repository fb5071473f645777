package scheduled

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/joshuarubin/iostream/pkg/executor"
)

var taskSeq atomic.Uint64

// Task is a Future augmented with a trigger time, a period describing its
// recurrence shape, a sequence number used to break trigger ties, and its
// own index into whichever DelayQueue currently holds it (-1 when not
// enqueued).
//
// period == 0 is one-shot, period > 0 is fixed-rate, period < 0 is
// fixed-delay (its magnitude is the delay applied after each run).
type Task struct {
	*executor.Future

	id      ID
	work    executor.Task
	seq     uint64
	trigger time.Time
	period  time.Duration
	index   int

	removeOnCancel bool
	queue          *DelayQueue
}

func newTask(work executor.Task, trigger time.Time, period time.Duration, removeOnCancel bool) *Task {
	t := &Task{
		id:             newID(),
		work:           work,
		seq:            taskSeq.Add(1),
		trigger:        trigger,
		period:         period,
		index:          -1,
		removeOnCancel: removeOnCancel,
	}
	t.Future = executor.NewFuture(context.Background(), work)
	return t
}

// ID returns this scheduled task's correlation ID. Stable across every
// period of a recurring task. The embedded Future, reset in place by
// RunAndReset, keeps its own separate "task" ID for the same lifetime.
func (t *Task) ID() ID {
	return t.id
}

// IsPeriodic reports whether this task re-triggers after running.
func (t *Task) IsPeriodic() bool {
	return t.period != 0
}

// Delay returns the time remaining until this task's next trigger. It may
// be negative or zero if the task is already eligible to run.
func (t *Task) Delay() time.Duration {
	return time.Until(t.trigger)
}

// Cancel cancels the task and, if removeOnCancel is set, immediately drops
// it from its queue so a long-delay cancellation does not leave a tombstone
// behind in the heap.
func (t *Task) Cancel(mayInterrupt bool) bool {
	ok := t.Future.Cancel(mayInterrupt)
	if ok && t.removeOnCancel && t.queue != nil {
		t.queue.Remove(t)
	}
	return ok
}

// advance updates the trigger for the next period, per the fixed-rate vs
// fixed-delay math: fixed-rate adds the period to the previous trigger
// (keeping a steady cadence even if a run overran); fixed-delay starts the
// clock fresh from completion time.
func (t *Task) advance() {
	if t.period > 0 {
		t.trigger = t.trigger.Add(t.period)
		return
	}
	t.trigger = time.Now().Add(-t.period)
}
