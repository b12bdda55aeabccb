package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// delivery is the outcome of sending to one recipient.
type delivery struct {
	Recipient string
	Err       error
}

// deliverAll runs fn concurrently for each recipient and collects outcomes in
// recipient order. It never fails fast: every recipient is attempted, and
// context cancellation only reaches fn through gctx. Each goroutine owns its
// own slot in the result slice.
func deliverAll(ctx context.Context, recipients []string, fn func(ctx context.Context, to string) error) []delivery {
	results := make([]delivery, len(recipients))

	g, gctx := errgroup.WithContext(ctx)
	for i, to := range recipients {
		g.Go(func() error {
			results[i] = delivery{Recipient: to, Err: fn(gctx, to)}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
