package scheduled

import "go.jetify.com/typeid"

// schedIDPrefix is the typeid prefix for a scheduled task's correlation ID,
// distinct from its embedded Future's "task" prefixed ID since the same
// Task object is re-enqueued across periods while the Future underneath it
// is reset in place.
type schedIDPrefix struct{}

func (schedIDPrefix) Prefix() string { return "sched" }

// ID identifies a Task for log correlation across its scheduled periods.
type ID struct {
	typeid.TypeID[schedIDPrefix]
}

func newID() ID {
	id, err := typeid.New[ID]()
	if err != nil {
		return ID{}
	}
	return id
}
