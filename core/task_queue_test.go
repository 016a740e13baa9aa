package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func recordingTask(order *[]int, id int) Task {
	return func() { *order = append(*order, id) }
}

// TestTaskQueue_OrdersByRunTime verifies earliest-deadline-first ordering
// Given: Tasks enqueued out of order, all already eligible
// When: They are dequeued
// Then: They come out ordered by run time
func TestTaskQueue_OrdersByRunTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	now := clock.Now()

	var order []int
	q.Enqueue(now.Add(-1*time.Millisecond), recordingTask(&order, 3))
	q.Enqueue(now.Add(-3*time.Millisecond), recordingTask(&order, 1))
	q.Enqueue(now.Add(-2*time.Millisecond), recordingTask(&order, 2))

	for range 3 {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatal("Dequeue returned false with eligible tasks queued")
		}
		item.Task()
	}

	want := []int{1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestTaskQueue_TiesAreFIFO verifies equal run times keep posting order
func TestTaskQueue_TiesAreFIFO(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	at := clock.Now()

	var order []int
	for i := range 10 {
		q.Enqueue(at, recordingTask(&order, i))
	}
	for range 10 {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatal("Dequeue returned false")
		}
		item.Task()
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

// TestTaskQueue_DequeueReturnsRunAt verifies the scheduled time is handed back
func TestTaskQueue_DequeueReturnsRunAt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	at := clock.Now().Add(-time.Second)

	q.Enqueue(at, func() {})
	item, ok := q.Dequeue()
	if !ok {
		t.Fatal("Dequeue returned false")
	}
	if !item.RunAt.Equal(at) {
		t.Errorf("RunAt = %v, want %v", item.RunAt, at)
	}
}

// TestTaskQueue_WaitsForDeadline verifies a future task is only handed out
// once the clock reaches its run time
// Given: A queue holding a single task 100ms in the future
// When: A worker dequeues and the clock advances
// Then: Dequeue stays blocked until the deadline passes
func TestTaskQueue_WaitsForDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	q.Enqueue(clock.Now().Add(100*time.Millisecond), func() {})

	got := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		got <- ok
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("worker never started waiting: %v", err)
	}

	clock.Advance(50 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("task handed out before its run time")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(50 * time.Millisecond)
	select {
	case ok := <-got:
		if !ok {
			t.Fatal("Dequeue returned false for an eligible task")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not return after the deadline")
	}
}

// TestTaskQueue_EarlierTaskPreemptsWait verifies an earlier task wakes a
// worker that is sleeping until a later deadline
func TestTaskQueue_EarlierTaskPreemptsWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	q.Enqueue(clock.Now().Add(time.Hour), func() {})

	got := make(chan TaskItem, 1)
	go func() {
		item, _ := q.Dequeue()
		got <- item
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("worker never started waiting: %v", err)
	}

	now := clock.Now()
	q.Enqueue(now, func() {})

	select {
	case item := <-got:
		if !item.RunAt.Equal(now) {
			t.Errorf("RunAt = %v, want %v", item.RunAt, now)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker was not woken by an earlier task")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

// TestTaskQueue_JoiningReleasesIdleWaiters verifies blocked workers exit on join
func TestTaskQueue_JoiningReleasesIdleWaiters(t *testing.T) {
	q := NewTaskQueue(nil)

	const waiters = 4
	results := make(chan bool, waiters)
	for range waiters {
		go func() {
			_, ok := q.Dequeue()
			results <- ok
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.SetJoining(true)

	for range waiters {
		select {
		case ok := <-results:
			if ok {
				t.Fatal("Dequeue returned a task from an empty queue")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released by SetJoining")
		}
	}
}

// TestTaskQueue_JoiningLeavesFutureTasks verifies only eligible tasks drain
// Given: One eligible task and one task an hour away
// When: Joining is set
// Then: The eligible task is returned, the future one stays queued
func TestTaskQueue_JoiningLeavesFutureTasks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	q.Enqueue(clock.Now(), func() {})
	q.Enqueue(clock.Now().Add(time.Hour), func() {})

	q.SetJoining(true)

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("eligible task not returned while joining")
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("future task returned while joining")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
	if q.DelayedLen() != 1 {
		t.Errorf("DelayedLen = %d, want 1", q.DelayedLen())
	}
}

func TestTaskQueue_SetJoiningFalseResumes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	q.SetJoining(true)
	if !q.Joining() {
		t.Fatal("Joining = false after SetJoining(true)")
	}

	q.SetJoining(false)
	q.Enqueue(clock.Now(), func() {})
	if _, ok := q.Dequeue(); !ok {
		t.Fatal("Dequeue returned false after joining was cleared")
	}
}

func TestTaskQueue_Clear(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewTaskQueue(clock)
	q.Enqueue(clock.Now(), func() {})
	q.Enqueue(clock.Now().Add(time.Minute), func() {})
	q.Enqueue(clock.Now().Add(time.Hour), func() {})

	if got := q.DelayedLen(); got != 2 {
		t.Errorf("DelayedLen = %d, want 2", got)
	}
	if got := q.Clear(); got != 3 {
		t.Errorf("Clear = %d, want 3", got)
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len after Clear = %d, want 0", got)
	}
}

func TestTaskQueue_DefaultClock(t *testing.T) {
	q := NewTaskQueue(nil)
	if q.Clock() == nil {
		t.Fatal("Clock() = nil, want real clock")
	}
}

// TestTaskQueue_RebasesWallClockTimes verifies times without a monotonic
// reading are rebased on the queue's clock
// Given: A real-clock queue and a run time stripped of its monotonic reading
// When: It is enqueued next to a clock-derived time and both are dequeued
// Then: Both come back with a monotonic reading, in run-time order
func TestTaskQueue_RebasesWallClockTimes(t *testing.T) {
	q := NewTaskQueue(nil)
	now := time.Now()

	var order []int
	q.Enqueue(now.Add(-time.Millisecond), recordingTask(&order, 2))
	q.Enqueue(now.Add(-time.Second).Round(0), recordingTask(&order, 1))

	for range 2 {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatal("Dequeue returned false")
		}
		if !strings.Contains(item.RunAt.String(), "m=") {
			t.Errorf("RunAt %v has no monotonic reading", item.RunAt)
		}
		item.Task()
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}
