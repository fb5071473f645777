package scheduled

// delayHeap is a container/heap.Interface ordering Tasks by (trigger,
// sequence). Each Task remembers its own index so Remove can locate it in
// O(log n) instead of scanning.
type delayHeap []*Task

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool {
	ti, tj := h[i], h[j]
	if ti.trigger.Equal(tj.trigger) {
		return ti.seq < tj.seq
	}
	return ti.trigger.Before(tj.trigger)
}

func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayHeap) Push(x any) {
	t, _ := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
