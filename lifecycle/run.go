package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Service is a long-running function that returns when ctx is done or when
// its work is finished.
type Service func(ctx context.Context) error

// Run runs services concurrently until the first one returns, ctx is
// canceled, or the process receives SIGINT/SIGTERM. The shared context is
// canceled at that point and Run waits for every service before running the
// process-wide exit hooks.
//
// Cancellation is not reported as an error.
func Run(ctx context.Context, services ...Service) error {
	defer RunExitHooks()
	return runGroup(ctx, services)
}

func runGroup(ctx context.Context, services []Service) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if svc == nil {
			continue
		}
		g.Go(func() error {
			defer cancel()
			return svc(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
