// Package rerr defines the error taxonomy shared by every pipeline stage
// and the query runtime.
package rerr

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", err) at call sites so
// errors.Is/errors.As keep working across package boundaries.
var (
	// ErrCorrupt means a binary format's magic, version, or CRC check failed.
	ErrCorrupt = errors.New("corrupt artifact")

	// ErrInvariantViolation means an internal consistency check failed
	// (bad permutation, out-of-range CSR target, mismatched down_rev arc).
	// Always fatal; aborts the stage that detected it.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUnresolvable means a turn rule referenced a way or node that could
	// not be resolved to an edge in the compiled graph. Never fatal — callers
	// accumulate these into a report instead of aborting the build.
	ErrUnresolvable = errors.New("unresolvable turn rule")

	// ErrNoRoute means a query found no finite path between two states.
	ErrNoRoute = errors.New("no route found")

	// ErrPointTooFar means a coordinate could not be snapped to any routable
	// edge within the configured search radius.
	ErrPointTooFar = errors.New("point too far from road")

	// ErrCancelled means a query's context was cancelled before completion.
	ErrCancelled = errors.New("query cancelled")

	// ErrDeadlineExceeded means a query's context deadline passed before
	// completion.
	ErrDeadlineExceeded = errors.New("query deadline exceeded")

	// ErrIO wraps filesystem/stream failures encountered while reading or
	// writing pipeline artifacts.
	ErrIO = errors.New("io error")
)

// UnresolvedRule describes one turn-rule relation that failed to resolve,
// for accumulation into a non-fatal build report (spec §7).
type UnresolvedRule struct {
	RelationID int64
	Reason     string
}

func (u UnresolvedRule) Error() string {
	return "relation " + itoa(u.RelationID) + ": " + u.Reason
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
