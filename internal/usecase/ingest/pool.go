package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runBounded runs fn once per item in items, capped at concurrency
// simultaneous goroutines, mirroring the teacher's errgroup-plus-semaphore
// fan-out pattern. The first error returned by any fn cancels the shared
// context and is returned once every goroutine has exited; concurrency <= 1
// runs items sequentially on the caller's goroutine.
func runBounded[T any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T) error) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency == 1 {
		for _, item := range items {
			if err := fn(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for _, item := range items {
		item := item
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			return fn(egCtx, item)
		})
	}

	return eg.Wait()
}
