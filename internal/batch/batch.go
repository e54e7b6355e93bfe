package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes worker once per item with at most limit invocations in flight
// at any instant. Results are returned in the same order as items, whatever
// order workers finish in. A limit below 1 is treated as 1.
//
// A failing worker does not cancel its siblings: every started invocation
// runs to completion and its result slot is filled, then the first failure
// is returned alongside the full results slice. Run itself never retries;
// compose retry behavior into worker.
//
// Workers receive ctx and must honor its cancellation. Once ctx is
// cancelled, invocations that have not started are skipped and Run returns
// the context's error after in-flight workers drain.
func Run[T, R any](ctx context.Context, limit int, items []T, worker func(ctx context.Context, index int, item T) (R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]R, len(items))

	// errgroup without WithContext: a failure must not cancel the rest of
	// the batch.
	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := worker(ctx, i, item)
			results[i] = result
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
