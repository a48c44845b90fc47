package ch

// witnessHeapItem is an entry in the witness search min-heap: a candidate
// hybrid state, its tentative distance from the search's source state, and
// the hop count used to enforce opts.WitnessHops.
type witnessHeapItem struct {
	state uint32
	dist  uint32
	hops  int
}

// witnessHeap is a concrete-typed binary min-heap over hybrid state ids:
// boxing-free concrete heaps over container/heap for this hot,
// per-contraction-step path.
type witnessHeap struct {
	items []witnessHeapItem
}

func (h *witnessHeap) Len() int { return len(h.items) }

func (h *witnessHeap) Push(state uint32, dist uint32, hops int) {
	h.items = append(h.items, witnessHeapItem{state, dist, hops})
	h.siftUp(len(h.items) - 1)
}

func (h *witnessHeap) Pop() witnessHeapItem {
	top := h.items[0]
	n := len(h.items) - 1
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top
}

func (h *witnessHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.dist >= h.items[parent].dist {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

func (h *witnessHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].dist < h.items[child].dist {
			child = right
		}
		if item.dist <= h.items[child].dist {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

func (h *witnessHeap) Reset() {
	h.items = h.items[:0]
}

// witnessState holds reusable working memory for batch witness searches
// over the hybrid state graph's mutable adjacency (outAdj, as contraction
// adds shortcuts). dist is indexed by state id and sized once for the whole
// contraction run; touched lets reset() undo only what the last search
// actually wrote instead of re-zeroing the full array.
type witnessState struct {
	dist    []uint32
	touched []uint32
	heap    witnessHeap
	opts    Options
}

func newWitnessState(numStates uint32, opts Options) *witnessState {
	dist := make([]uint32, numStates)
	for i := range dist {
		dist[i] = maxUint32
	}
	return &witnessState{
		dist: dist,
		heap: witnessHeap{items: make([]witnessHeapItem, 0, 256)},
		opts: opts,
	}
}

func (ws *witnessState) reset() {
	for _, s := range ws.touched {
		ws.dist[s] = maxUint32
	}
	ws.touched = ws.touched[:0]
	ws.heap.Reset()
}

const maxUint32 = ^uint32(0)

// batchWitnessSearch runs a single Dijkstra from source over the hybrid
// state graph's current adjacency, skipping the state being contracted
// (excluded) and any state already contracted in an earlier step. The
// search is bounded by ws.opts.WitnessHops/WitnessMaxSettled rather than run
// to exhaustion, trading a small chance of an unnecessary shortcut for
// bounded per-step cost at contraction scale (spec §9c). The caller reads
// ws.dist afterward to decide which outgoing states still need a shortcut
// once source's neighbor (excluded) is removed.
func batchWitnessSearch(ws *witnessState, outAdj [][]adjEntry, source, excluded uint32, maxWeight uint32, contracted []bool) {
	ws.reset()

	ws.dist[source] = 0
	ws.touched = append(ws.touched, source)
	ws.heap.Push(source, 0, 0)

	settled := 0

	for ws.heap.Len() > 0 {
		cur := ws.heap.Pop()

		if cur.dist > ws.dist[cur.state] {
			continue
		}

		settled++
		if settled >= ws.opts.WitnessMaxSettled {
			break
		}
		if cur.dist > maxWeight {
			continue
		}
		if cur.hops >= ws.opts.WitnessHops {
			continue
		}

		for _, e := range outAdj[cur.state] {
			if e.to == excluded || contracted[e.to] {
				continue
			}
			newDist := cur.dist + e.weight
			if newDist > maxWeight {
				continue
			}
			if newDist < ws.dist[e.to] {
				if ws.dist[e.to] == maxUint32 {
					ws.touched = append(ws.touched, e.to)
				}
				ws.dist[e.to] = newDist
				ws.heap.Push(e.to, newDist, cur.hops+1)
			}
		}
	}
}
