package query

import (
	"github.com/nbgroute/nbgroute/pkg/ch"
	"github.com/nbgroute/nbgroute/pkg/nbg"
)

// maxUnpackDepth bounds the shortcut-unpacking recursion, matching the
// teacher's unpack.go safety bound.
const maxUnpackDepth = 100

// arcInfo looks up the CH arc from->to, regardless of which of the two
// overlay CSRs actually stores it: a contracted arc is upward in exactly
// one direction (source rank < dest rank), so it lives in FwdTargets if
// rank[from] < rank[to] and in BwdTargets (stored reversed) otherwise.
// Rather than precompute which side applies, both are tried — cheap,
// since each endpoint's degree here is the small contracted-overlay
// degree, not the original graph's.
func arcInfo(g *ch.Graph, from, to uint32) (weight uint32, middle int64, ok bool) {
	start, end := g.ArcsFrom(from)
	for a := start; a < end; a++ {
		if g.FwdTargets[a] == to {
			return g.FwdWeight[a], g.FwdMiddle[a], true
		}
	}
	start, end = g.ArcsFromBwd(to)
	for a := start; a < end; a++ {
		if g.BwdTargets[a] == from {
			return g.BwdWeight[a], g.BwdMiddle[a], true
		}
	}
	return 0, 0, false
}

// unpackArc expands the CH arc from->to into the sequence of underlying
// hybrid-graph states it passes through (excluding from, including to),
// recursively resolving shortcuts via their middle state. Iterative with
// an explicit stack, mirroring the teacher's unpack.go approach.
func unpackArc(g *ch.Graph, from, to uint32, out *[]uint32) {
	type item struct {
		from, to uint32
		depth    int
	}
	stack := []item{{from, to, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.depth > maxUnpackDepth {
			continue
		}

		_, middle, ok := arcInfo(g, it.from, it.to)
		if !ok || middle < 0 {
			*out = append(*out, it.to)
			continue
		}

		mid := uint32(middle)
		// Push the second half first so the first half pops (and is
		// processed) before it, keeping the expansion in from->to order.
		stack = append(stack, item{mid, it.to, it.depth + 1})
		stack = append(stack, item{it.from, mid, it.depth + 1})
	}
}

// unpackStatePath expands a state-level overlay path (consecutive entries
// may be connected by a shortcut rather than a direct hybrid-graph arc)
// into the full underlying state sequence.
func (e *Engine) unpackStatePath(statePath []uint32) []uint32 {
	if len(statePath) == 0 {
		return nil
	}
	full := []uint32{statePath[0]}
	for i := 0; i < len(statePath)-1; i++ {
		unpackArc(e.chg, statePath[i], statePath[i+1], &full)
	}
	return full
}

// buildGeometry converts a full hybrid-state sequence into the lat/lon
// polyline of distinct NBG nodes it visits, plus the true distance in
// meters (summed from EdgeAttr.LengthMM along the way — Weight is a
// travel-time cost, not a length, so it cannot stand in for this). pkg/nbg
// keeps only endpoint coordinates (no intermediate way shape points), so
// segments between consecutive nodes are straight lines.
func (e *Engine) buildGeometry(states []uint32) ([]LatLng, float64) {
	if len(states) == 0 {
		return nil, 0
	}
	geom := make([]LatLng, 0, len(states))
	var lastNode uint32 = ^uint32(0)
	var distMM uint64
	haveLast := false
	for _, s := range states {
		node := e.hg.StateHeadNBG[s]
		if node == lastNode {
			continue
		}
		if haveLast {
			distMM += edgeLengthMM(e.c, lastNode, node)
		}
		geom = append(geom, LatLng{Lat: e.c.NodeLat[node], Lon: e.c.NodeLon[node]})
		lastNode = node
		haveLast = true
	}
	return geom, float64(distMM) / 1000.0
}

// edgeLengthMM returns the logical edge's length between adjacent NBG
// nodes from/to, or 0 if no half-edge connects them (shouldn't happen for
// a path built from real graph arcs).
func edgeLengthMM(c *nbg.CSR, from, to uint32) uint64 {
	start, end := c.EdgesFrom(from)
	for e := start; e < end; e++ {
		if c.Heads[e] == to {
			return uint64(c.Attrs[c.EdgeIdx[e]].LengthMM)
		}
	}
	return 0
}
