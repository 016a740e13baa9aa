package core

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultQueueCap = 16

// TaskQueue holds pending tasks ordered by their run time and hands the
// earliest eligible one to a requesting worker.
//
// Waiting workers park on a generation channel that is closed on every
// broadcast and replaced under the lock, so a wakeup issued between a
// worker's check and its wait is never lost. Deadline waits use a timer
// from the injected clock.
//
// The joining flag is only written while holding the queue lock, which makes
// the shutdown transition visible to every waiter. It may be read without
// the lock through Joining.
type TaskQueue struct {
	mu      sync.Mutex
	pq      scheduledTaskHeap
	nextSeq uint64
	wakeup  chan struct{}
	joining atomic.Bool
	clock   clockwork.Clock
}

// NewTaskQueue creates an empty queue. A nil clock selects the real clock.
func NewTaskQueue(clock clockwork.Clock) *TaskQueue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	q := &TaskQueue{
		pq:     make(scheduledTaskHeap, 0, defaultQueueCap),
		wakeup: make(chan struct{}),
		clock:  clock,
	}
	heap.Init(&q.pq)
	return q
}

// Clock returns the clock the queue evaluates eligibility against.
func (q *TaskQueue) Clock() clockwork.Clock {
	return q.clock
}

// Enqueue inserts a task that becomes eligible at runAt.
// Waiters are woken when the task lands at the head of the queue.
//
// runAt is rebased on the clock's current reading, so every queued time
// carries the same kind of reading (monotonic for the real clock) and the
// heap order stays consistent across wall-clock steps.
func (q *TaskQueue) Enqueue(runAt time.Time, task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	runAt = now.Add(runAt.Sub(now))

	item := &scheduledTask{
		runAt:  runAt,
		seq:    q.nextSeq,
		action: task,
	}
	q.nextSeq++
	heap.Push(&q.pq, item)

	if item.index == 0 {
		q.broadcastLocked()
	}
}

// TaskItem is a dequeued task together with the time it was scheduled for.
type TaskItem struct {
	RunAt time.Time
	Task  Task
}

// Dequeue blocks until a task is eligible and returns it. It returns false
// once joining is set and no eligible task remains; tasks scheduled in the
// future are left in place in that case.
func (q *TaskQueue) Dequeue() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		top := q.pq.peek()
		if top == nil {
			if q.joining.Load() {
				return TaskItem{}, false
			}
			q.waitLocked(-1)
			continue
		}

		now := q.clock.Now()
		if !top.runAt.After(now) {
			heap.Pop(&q.pq)
			item := TaskItem{RunAt: top.runAt, Task: top.action}
			top.action = nil
			return item, true
		}

		if q.joining.Load() {
			return TaskItem{}, false
		}
		q.waitLocked(top.runAt.Sub(now))
	}
}

// waitLocked releases the lock until a broadcast or until d elapses
// (d < 0 waits for a broadcast only), then reacquires it. Callers must
// re-evaluate the queue afterwards.
func (q *TaskQueue) waitLocked(d time.Duration) {
	wakeup := q.wakeup
	q.mu.Unlock()
	defer q.mu.Lock()

	if d < 0 {
		<-wakeup
		return
	}

	timer := q.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-wakeup:
	case <-timer.Chan():
	}
}

func (q *TaskQueue) broadcastLocked() {
	close(q.wakeup)
	q.wakeup = make(chan struct{})
}

// SetJoining updates the joining flag and wakes every waiter so that
// blocked workers observe the new state.
func (q *TaskQueue) SetJoining(joining bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.joining.Store(joining)
	q.broadcastLocked()
}

// Joining reports the joining flag without taking the queue lock.
func (q *TaskQueue) Joining() bool {
	return q.joining.Load()
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

// DelayedLen returns the number of queued tasks that are not yet eligible.
func (q *TaskQueue) DelayedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	n := 0
	for _, item := range q.pq {
		if item.runAt.After(now) {
			n++
		}
	}
	return n
}

// Clear discards every queued task and returns how many were dropped.
func (q *TaskQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pq)
	// Create a new heap to release all task references
	q.pq = make(scheduledTaskHeap, 0, defaultQueueCap)
	heap.Init(&q.pq)
	return n
}
