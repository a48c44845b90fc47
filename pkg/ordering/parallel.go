package ordering

import (
	"context"
	"runtime"
)

// maxParallelism bounds concurrent partition recursion to the available
// CPUs, per §5's "bounded work-stealing pool" convention used throughout
// preprocessing.
func maxParallelism() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// newBackground returns the root context for a partition-recursion
// errgroup. Ordering never needs cancellation from outside its own
// recursion, so this is deliberately context.Background rather than a
// parameter.
func newBackground() context.Context {
	return context.Background()
}
