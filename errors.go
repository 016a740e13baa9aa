package threadpool

import "errors"

var (
	// ErrInvalidWorkerCount is returned by Spawn for a negative count.
	ErrInvalidWorkerCount = errors.New("threadpool: invalid worker count")

	// ErrNilTask is the panic value raised when a nil task is posted.
	ErrNilTask = errors.New("threadpool: task cannot be nil")

	// ErrPoolClosed is returned by Spawn once the pool has been closed.
	ErrPoolClosed = errors.New("threadpool: pool closed")

	// ErrAlreadyInitialized is returned by ConfigureInstance once the
	// process-wide pool exists.
	ErrAlreadyInitialized = errors.New("threadpool: instance already initialized")
)
