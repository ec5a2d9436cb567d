package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// parallel runs two independent store reads at once. The first error
// cancels the other read and both results are discarded.
func parallel[A, B any](ctx context.Context, readA func(context.Context) (A, error), readB func(context.Context) (B, error)) (A, B, error) {
	var (
		a A
		b B
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { a, err = readA(gctx); return err })
	g.Go(func() (err error) { b, err = readB(gctx); return err })

	if err := g.Wait(); err != nil {
		var (
			zeroA A
			zeroB B
		)

		return zeroA, zeroB, err
	}

	return a, b, nil
}
