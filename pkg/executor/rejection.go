package executor

// RejectionPolicy decides what happens to a Future when a Pool cannot
// accept it for execution, either because it is shutting down or because
// its queue (and worker count, up to max) is saturated. It returns an error
// to surface to the submitter, or nil if the policy itself satisfied the
// task (e.g. ran it inline).
type RejectionPolicy func(p *Pool, item *Future) error

// AbortPolicy rejects with ErrRejectedExecution. This is the default.
func AbortPolicy(_ *Pool, _ *Future) error {
	return ErrRejectedExecution
}

// CallerRunsPolicy runs the task on the submitting goroutine, unless the
// pool has already been shut down, in which case it rejects.
func CallerRunsPolicy(p *Pool, item *Future) error {
	if p.runState() != Running {
		return ErrRejectedExecution
	}
	item.Run()
	return nil
}

// DiscardPolicy silently drops the task.
func DiscardPolicy(_ *Pool, _ *Future) error {
	return nil
}

// DiscardOldestPolicy drops the queue's current head (if any) and retries
// execute once with item.
func DiscardOldestPolicy(p *Pool, item *Future) error {
	if p.runState() != Running {
		return ErrRejectedExecution
	}
	p.queue.removeOldest()
	return p.execute(item)
}
