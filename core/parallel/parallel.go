package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// Chunks splits [0, items) into one contiguous range per worker and runs fn on
// every range concurrently. workers <= 0 means one worker per CPU. When items
// does not exceed minParallel, fn runs once on the calling goroutine.
func Chunks(items, workers, minParallel int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if items <= minParallel {
		fn(0, items)
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, items)
	chunk := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunk {
		end := min(start+chunk, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ForEach calls fn(i) for i in [0, n) on at most workers goroutines and returns
// the first error. workers <= 0 means one worker per CPU.
//
// Callers write results into slot i of a pre-allocated slice, so the outcome
// does not depend on scheduling. Panics inside fn are returned as *errors.PanicError.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			return errors.SafeExecute("parallel.ForEach", func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return fn(gctx, i)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
