package transport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Race runs every task concurrently and returns as soon as the first one
// finishes: the others see their context cancelled, and Race waits for
// them to return before reporting the index and error of the winner.
func Race(ctx context.Context, tasks ...func(context.Context) error) (int, error) {
	if len(tasks) == 0 {
		return -1, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		index int
		err   error
	}
	first := make(chan result, 1)

	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			err := task(ctx)
			select {
			case first <- result{index: i, err: err}:
				cancel()
			default:
			}
			return nil
		})
	}
	_ = g.Wait()

	r := <-first
	return r.index, r.err
}
