package query

import "math"

// quadHeap is a 4-ary min-heap ordered by dist alone (equal distances are
// not ordered by state id, and there is no position array or decrease-key;
// stale entries are skipped on pop), used by the
// bucket many-to-many pass (§4.7.2) instead of the 1-to-1 query's binary
// MinHeap: M2M settles a much larger frontier per source/target than a
// single point query, and a shallower 4-ary tree trades slightly more
// comparisons per sift for fewer cache-unfriendly level jumps.
type quadHeap struct {
	items []PQItem
}

func (h *quadHeap) Len() int { return len(h.items) }

func (h *quadHeap) Reset() { h.items = h.items[:0] }

func (h *quadHeap) Push(node, dist uint32) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *quadHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *quadHeap) PeekDist() uint32 {
	if len(h.items) == 0 {
		return math.MaxUint32
	}
	return h.items[0].Dist
}

func (h *quadHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 4
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *quadHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		first := 4*i + 1
		for c := first; c < first+4 && c < n; c++ {
			if h.items[c].Dist < h.items[smallest].Dist {
				smallest = c
			}
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
