package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	threadpool "github.com/Swind/go-threadpool"
)

var errNotYet = errors.New("not yet")

// workload posts immediate, delayed and retried tasks and waits for all of
// them before returning.
type workload struct {
	pool   *threadpool.ThreadPool
	logger *zap.Logger
	tasks  int
	delay  time.Duration
	linger time.Duration
}

func (w workload) run(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		ran     atomic.Int32
		delayed atomic.Int32
	)

	for range w.tasks {
		wg.Add(1)
		w.pool.Post(func() {
			defer wg.Done()
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		})
	}

	for i := range 3 {
		wg.Add(1)
		w.pool.PostDelayed(func() {
			defer wg.Done()
			delayed.Add(1)
		}, time.Duration(i+1)*w.delay)
	}

	wg.Add(1)
	var calls int
	w.pool.PostRetrying(func() error {
		calls++
		if calls < 3 {
			return errNotYet
		}
		return nil
	}, threadpool.RetryOptions{
		BackOff:     backoff.NewConstantBackOff(w.delay / 4),
		MaxAttempts: 5,
		OnDone: func(err error, attempts int) {
			defer wg.Done()
			w.logger.Info("retried task finished", zap.Int("attempts", attempts), zap.Error(err))
		},
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	stats := w.pool.Stats()
	w.logger.Info("workload finished",
		zap.Int32("immediate", ran.Load()),
		zap.Int32("delayed", delayed.Load()),
		zap.Int("workers", stats.Workers),
		zap.Int("queued", stats.Queued),
	)

	if w.linger <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.linger):
		return nil
	}
}
