package executor

import "go.jetify.com/typeid"

// taskIDPrefix is the typeid prefix for a submitted task's correlation ID.
type taskIDPrefix struct{}

func (taskIDPrefix) Prefix() string { return "task" }

// TaskID identifies a Future for log correlation. It plays no part in
// ordering or equality; the work queue's FIFO order and the Future's
// pointer identity do that.
type TaskID struct {
	typeid.TypeID[taskIDPrefix]
}

func newTaskID() TaskID {
	id, err := typeid.New[TaskID]()
	if err != nil {
		// typeid.New only fails if the random source is broken; fall back
		// to the zero value rather than panic on a logging concern.
		return TaskID{}
	}
	return id
}
