package core

import "time"

// Task is the unit of work (Closure)
type Task func()

// ThreadExitHook runs once on a worker right before it terminates.
// It stands in for per-thread teardown required by the host (TLS caches,
// cgo libraries keeping thread-local state, etc.).
type ThreadExitHook func()

// scheduledTask is a queued task with its earliest run time
type scheduledTask struct {
	runAt  time.Time
	seq    uint64 // submission order, breaks ties on equal runAt
	action Task
	index  int // for heap interface
}

// scheduledTaskHeap implements heap.Interface ordered by (runAt, seq)
type scheduledTaskHeap []*scheduledTask

func (h scheduledTaskHeap) Len() int { return len(h) }

func (h scheduledTaskHeap) Less(i, j int) bool {
	if h[i].runAt.Equal(h[j].runAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].runAt.Before(h[j].runAt)
}

func (h scheduledTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *scheduledTaskHeap) Push(x any) {
	n := len(*h)
	item := x.(*scheduledTask)
	item.index = n
	*h = append(*h, item)
}

func (h *scheduledTaskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h scheduledTaskHeap) peek() *scheduledTask {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
