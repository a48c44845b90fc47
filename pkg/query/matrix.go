package query

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nbgroute/nbgroute/pkg/ch"
)

// bucketEntry is one (source, distance-from-source) pair attached to a
// state during the forward bucket phase.
type bucketEntry struct {
	source uint32
	dist   uint32
}

// Matrix answers many-to-many queries via the bucket CH algorithm (§4.7.2):
// a forward phase runs one upward Dijkstra per source and drops
// (source, dist) into every settled state's bucket; a backward phase runs
// one upward Dijkstra per target over the reversed overlay and, at each
// settled state, scans that state's bucket to update every (source,
// target) pair it completes a path for. No teacher equivalent — the
// teacher never implemented many-to-many — grounded on the bucket-CSR and
// 4-ary-heap shape described in original_source's matrix/bucket_ch.rs.
type Matrix struct {
	chg *ch.Graph
}

// NewMatrix wraps a contracted overlay for many-to-many queries.
func NewMatrix(chg *ch.Graph) *Matrix {
	return &Matrix{chg: chg}
}

// Compute returns matrix[i][j], the shortest distance from sources[i] to
// targets[j] (math.MaxUint32 if unreachable). Both phases are partitioned
// across a worker pool bounded by maxWorkers (each worker owns disjoint
// sources, then disjoint targets).
func (m *Matrix) Compute(ctx context.Context, sources, targets []uint32, maxWorkers int) ([][]uint32, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	n := m.chg.NumStates

	buckets := make([][]bucketEntry, n)
	var bucketsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(maxWorkers))

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			dist := forwardSettle(m.chg, src)
			local := make(map[uint32]uint32, len(dist))
			for v, d := range dist {
				local[uint32(v)] = d
			}
			bucketsMu.Lock()
			for v, d := range local {
				buckets[v] = append(buckets[v], bucketEntry{source: uint32(i), dist: d})
			}
			bucketsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bucketEntries, bucketOffsets := flattenBuckets(buckets)

	result := make([][]uint32, len(sources))
	for i := range result {
		row := make([]uint32, len(targets))
		for j := range row {
			row[j] = infDist
		}
		result[i] = row
	}

	g2, gctx2 := errgroup.WithContext(ctx)
	sem2 := semaphore.NewWeighted(int64(maxWorkers))

	for j, tgt := range targets {
		j, tgt := j, tgt
		g2.Go(func() error {
			if err := sem2.Acquire(gctx2, 1); err != nil {
				return err
			}
			defer sem2.Release(1)

			backwardSettleAndScan(m.chg, tgt, bucketEntries, bucketOffsets, func(sourceIdx uint32, total uint32) {
				if total < result[sourceIdx][j] {
					result[sourceIdx][j] = total
				}
			})
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// forwardSettle runs an upward Dijkstra from source over the forward
// overlay and returns every settled state's distance.
func forwardSettle(chg *ch.Graph, source uint32) map[uint32]uint32 {
	dist := make(map[uint32]uint32)
	var heap quadHeap
	dist[source] = 0
	heap.Push(source, 0)

	for heap.Len() > 0 {
		item := heap.Pop()
		if item.Dist > dist[item.Node] {
			continue
		}
		start, end := chg.ArcsFrom(item.Node)
		for a := start; a < end; a++ {
			v := chg.FwdTargets[a]
			nd := item.Dist + chg.FwdWeight[a]
			if cur, ok := dist[v]; !ok || nd < cur {
				dist[v] = nd
				heap.Push(v, nd)
			}
		}
	}
	return dist
}

// backwardSettleAndScan runs an upward Dijkstra from target over the
// backward overlay; at every settled state it scans that state's bucket
// and reports (source index, total distance) to report.
func backwardSettleAndScan(chg *ch.Graph, target uint32, entries []bucketEntry, offsets []uint32, report func(sourceIdx, total uint32)) {
	dist := make(map[uint32]uint32)
	var heap quadHeap
	dist[target] = 0
	heap.Push(target, 0)

	for heap.Len() > 0 {
		item := heap.Pop()
		if item.Dist > dist[item.Node] {
			continue
		}
		for e := offsets[item.Node]; e < offsets[item.Node+1]; e++ {
			be := entries[e]
			if total := be.dist + item.Dist; total < math.MaxUint32 {
				report(be.source, total)
			}
		}
		start, end := chg.ArcsFromBwd(item.Node)
		for a := start; a < end; a++ {
			v := chg.BwdTargets[a]
			nd := item.Dist + chg.BwdWeight[a]
			if cur, ok := dist[v]; !ok || nd < cur {
				dist[v] = nd
				heap.Push(v, nd)
			}
		}
	}
}

// flattenBuckets packs the per-state bucket slices into a CSR layout
// (bucket_entries, bucket_offsets), so the backward phase scans a
// contiguous range per state instead of following a slice-of-slices.
func flattenBuckets(buckets [][]bucketEntry) ([]bucketEntry, []uint32) {
	n := uint32(len(buckets))
	offsets := make([]uint32, n+1)
	for v, b := range buckets {
		offsets[v+1] = uint32(len(b))
	}
	for i := uint32(1); i <= n; i++ {
		offsets[i] += offsets[i-1]
	}
	entries := make([]bucketEntry, offsets[n])
	pos := make([]uint32, n)
	copy(pos, offsets[:n])
	for v, b := range buckets {
		for _, e := range b {
			entries[pos[v]] = e
			pos[v]++
		}
	}
	return entries, offsets
}
