package threadpool

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Swind/go-threadpool/core"
)

// RetryOptions controls PostRetrying.
type RetryOptions struct {
	// BackOff yields the delay before each retry. Defaults to an
	// exponential backoff. It is Reset before the first attempt.
	BackOff backoff.BackOff

	// MaxAttempts bounds the total number of attempts; 0 means no bound
	// on the count.
	MaxAttempts int

	// MaxElapsedTime stops retrying once the next attempt would start later
	// than this after PostRetrying was called. 0 selects
	// backoff.DefaultMaxElapsedTime; a negative value removes the bound.
	MaxElapsedTime time.Duration

	// OnDone, if set, runs on the pool after the last attempt with the
	// final error (nil on success) and the number of attempts made.
	OnDone func(err error, attempts int)
}

// PostRetrying runs op on the pool and, while it fails, posts it again after
// the delay given by opts.BackOff. Returning an error wrapped with
// backoff.Permanent stops retrying immediately. Retrying also ends when
// MaxAttempts, MaxElapsedTime or BackOff is exhausted, so OnDone always runs
// unless the pool is joined first.
//
// Retries are ordinary delayed tasks: if the pool is joined before a retry
// becomes eligible, that retry does not run.
func (p *ThreadPool) PostRetrying(op func() error, opts RetryOptions) {
	if op == nil {
		panic(ErrNilTask)
	}
	b := opts.BackOff
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}
	b.Reset()

	maxElapsed := opts.MaxElapsedTime
	if maxElapsed == 0 {
		maxElapsed = backoff.DefaultMaxElapsedTime
	}

	r := &retryTask{
		pool:        p,
		op:          op,
		backOff:     b,
		maxAttempts: opts.MaxAttempts,
		maxElapsed:  maxElapsed,
		startedAt:   p.clock.Now(),
		onDone:      opts.OnDone,
	}
	p.Post(r.attempt)
}

type retryTask struct {
	pool        *ThreadPool
	op          func() error
	backOff     backoff.BackOff
	maxAttempts int
	maxElapsed  time.Duration
	startedAt   time.Time
	onDone      func(err error, attempts int)
	attempts    int
}

func (r *retryTask) attempt() {
	r.attempts++
	err := r.op()
	if err == nil {
		r.finish(nil)
		return
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		r.finish(permanent.Err)
		return
	}
	if r.maxAttempts > 0 && r.attempts >= r.maxAttempts {
		r.finish(err)
		return
	}

	next := r.backOff.NextBackOff()
	if next == backoff.Stop {
		r.finish(err)
		return
	}
	if r.maxElapsed > 0 && r.pool.clock.Since(r.startedAt)+next > r.maxElapsed {
		r.finish(err)
		return
	}

	r.pool.logger.Debug("retrying task",
		core.F("pool", r.pool.id),
		core.F("attempt", r.attempts),
		core.F("delay", next),
		core.F("error", err),
	)
	r.pool.PostDelayed(r.attempt, next)
}

func (r *retryTask) finish(err error) {
	if err != nil {
		r.pool.logger.Warn("task failed after retries",
			core.F("pool", r.pool.id),
			core.F("attempts", r.attempts),
			core.F("error", err),
		)
	}
	if r.onDone != nil {
		r.onDone(err, r.attempts)
	}
}
