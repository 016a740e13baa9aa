package threadpool

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Swind/go-threadpool/config"
	"github.com/Swind/go-threadpool/core"
)

// ThreadPool runs immediate and time-scheduled tasks on a set of worker
// goroutines.
//
// Lock order is workersMu, then the queue lock. The queue never calls back
// into the pool, so the reverse never happens.
type ThreadPool struct {
	id    string
	queue *core.TaskQueue
	clock clockwork.Clock

	// workersMu guards structural changes: spawn, join, count.
	workersMu    sync.Mutex
	workers      []*worker
	nextWorkerID int

	// closed is set once by Close; Spawn is rejected afterwards
	closed bool

	// mirrors len(workers) for Stats, which must not block behind a Join
	workerCount atomic.Int64
	active      atomic.Int32

	logger       core.Logger
	metrics      core.Metrics
	panicHandler core.PanicHandler
	exitHook     core.ThreadExitHook
	lockOSThread bool
}

type worker struct {
	id   int
	done chan struct{}
}

var _ io.Closer = (*ThreadPool)(nil)

// New creates a pool with no workers. Call Spawn to start executing tasks.
func New(opts ...Option) *ThreadPool {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &ThreadPool{
		id:           o.name,
		queue:        core.NewTaskQueue(o.clock),
		clock:        o.clock,
		logger:       o.logger,
		metrics:      o.metrics,
		panicHandler: o.panicHandler,
		exitHook:     o.exitHook,
		lockOSThread: o.lockOSThread,
	}
}

// NewFromConfig creates a pool from cfg and spawns cfg.Workers workers.
// opts are applied after the config-derived options.
func NewFromConfig(cfg config.Config, opts ...Option) (*ThreadPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := New(append(OptionsFromConfig(cfg), opts...)...)
	if err := p.Spawn(cfg.Workers); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the name of the pool
func (p *ThreadPool) ID() string {
	return p.id
}

// Spawn adds n workers. It clears the joining state, so a pool that was
// joined can be brought back by spawning again. A closed pool cannot:
// Spawn returns ErrPoolClosed.
func (p *ThreadPool) Spawn(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, n)
	}

	p.workersMu.Lock()
	defer p.workersMu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue.SetJoining(false)
	for range n {
		w := &worker{id: p.nextWorkerID, done: make(chan struct{})}
		p.nextWorkerID++
		p.workers = append(p.workers, w)
		go p.run(w)
	}

	count := len(p.workers)
	p.workerCount.Store(int64(count))
	p.metrics.RecordWorkers(p.id, count)
	p.logger.Debug("workers spawned", core.F("pool", p.id), core.F("spawned", n), core.F("workers", count))
	return nil
}

// Count returns the number of workers, including ones that were told to
// stop but have not been joined yet.
func (p *ThreadPool) Count() int {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	return len(p.workers)
}

// Join stops the pool and waits for every worker to exit. Workers keep
// running tasks that are already eligible, then exit; tasks scheduled in
// the future stay queued and do not run unless the pool is spawned again.
//
// Join is idempotent: it returns immediately when a join is in progress or
// done. It must not be called from inside a task, and tasks still running
// during a Join must not call Spawn or Count.
func (p *ThreadPool) Join() {
	if p.queue.Joining() {
		return
	}

	p.workersMu.Lock()
	defer p.workersMu.Unlock()

	// a concurrent Join finished while we were waiting for the lock
	if p.queue.Joining() {
		return
	}
	p.joinLocked()
}

func (p *ThreadPool) joinLocked() {
	start := p.clock.Now()
	p.logger.Debug("joining pool", core.F("pool", p.id), core.F("workers", len(p.workers)))
	p.queue.SetJoining(true)
	for _, w := range p.workers {
		<-w.done
	}
	joined := len(p.workers)
	p.workers = nil
	p.workerCount.Store(0)

	p.metrics.RecordWorkers(p.id, 0)
	p.logger.Info("pool joined",
		core.F("pool", p.id),
		core.F("workers", joined),
		core.F("duration", p.clock.Since(start)),
	)
}

// Close joins the pool and discards every task still queued. A closed pool
// cannot be spawned again: Spawn returns ErrPoolClosed.
func (p *ThreadPool) Close() error {
	p.workersMu.Lock()
	if p.closed {
		p.workersMu.Unlock()
		return nil
	}
	p.closed = true
	// joining with workers left is impossible while holding the lock
	if !p.queue.Joining() {
		p.joinLocked()
	}
	discarded := p.queue.Clear()
	p.workersMu.Unlock()

	if discarded > 0 {
		p.metrics.RecordTasksDiscarded(p.id, discarded)
		p.logger.Warn("discarded tasks that never became eligible",
			core.F("pool", p.id),
			core.F("discarded", discarded),
		)
	}
	return nil
}

// Post schedules task to run as soon as a worker is free.
func (p *ThreadPool) Post(task core.Task) {
	p.PostAt(task, p.clock.Now())
}

// PostDelayed schedules task to run no earlier than delay from now.
func (p *ThreadPool) PostDelayed(task core.Task, delay time.Duration) {
	p.PostAt(task, p.clock.Now().Add(delay))
}

// PostAt schedules task to run no earlier than at. Tasks that are eligible
// at the same time run in order of their scheduled time, ties in posting
// order. It panics with ErrNilTask if task is nil.
func (p *ThreadPool) PostAt(task core.Task, at time.Time) {
	if task == nil {
		panic(ErrNilTask)
	}
	p.queue.Enqueue(at, task)
	p.metrics.RecordQueueDepth(p.id, p.queue.Len())
}

// Stats returns a point-in-time snapshot of the pool.
func (p *ThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      p.id,
		Workers: int(p.workerCount.Load()),
		Queued:  p.queue.Len(),
		Delayed: p.queue.DelayedLen(),
		Active:  int(p.active.Load()),
		Joining: p.queue.Joining(),
	}
}

// run is the main loop for each worker
func (p *ThreadPool) run(w *worker) {
	defer close(w.done)
	if p.lockOSThread {
		// never unlocked: the thread exits together with the worker
		runtime.LockOSThread()
	}

	for p.runOne(w) {
	}

	if p.exitHook != nil {
		p.exitHook()
	}
	p.logger.Debug("worker exited", core.F("pool", p.id), core.F("worker", w.id))
}

func (p *ThreadPool) runOne(w *worker) bool {
	item, ok := p.queue.Dequeue()
	if !ok {
		return false
	}
	p.execute(w, item)
	return true
}

func (p *ThreadPool) execute(w *worker, item core.TaskItem) {
	start := p.clock.Now()
	p.metrics.RecordTaskLateness(p.id, start.Sub(item.RunAt))

	p.active.Add(1)
	defer p.active.Add(-1)
	if p.panicHandler != nil {
		defer p.recoverTask(w)
	}

	item.Task()
	p.metrics.RecordTaskDuration(p.id, p.clock.Since(start))
}

func (p *ThreadPool) recoverTask(w *worker) {
	if r := recover(); r != nil {
		p.metrics.RecordTaskPanic(p.id, r)
		p.panicHandler.HandlePanic(p.id, w.id, r, debug.Stack())
	}
}
