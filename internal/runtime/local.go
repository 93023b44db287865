package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RankFunc is the body a locally-emulated rank runs: one goroutine
// stands in for one MPI process on the node.
type RankFunc func(ctx context.Context, rank int) error

// Spawn runs n RankFuncs concurrently and waits for all of them,
// returning the first error encountered (if any) and cancelling the
// remaining ranks' context. Cancellation reaches only ranks that watch
// ctx; a sibling blocked in Fence.Arrive is not released by it.
func Spawn(ctx context.Context, n int, fn RankFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < n; rank++ {
		rank := rank
		g.Go(func() error {
			return fn(gctx, rank)
		})
	}
	return g.Wait()
}

// IsMaster reports whether rank is the local emulation's master rank,
// the one that drives shared init/finalize work.
func IsMaster(rank int) bool {
	return rank == 0
}
