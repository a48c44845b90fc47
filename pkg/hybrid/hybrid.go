// Package hybrid implements Stage 5: collapsing the Node-Based Graph into a
// hybrid state graph where "simple" junctions (no turn rule, no turn cost)
// keep a single node-state, while "complex" junctions (subject to at least
// one turn rule) get one edge-state per incoming road, so turn semantics
// stay exact without paying the ~2.6x state blow-up of a full edge-based
// graph. Grounded on the original_source's hybrid/mod.rs design doc; there
// is no teacher equivalent (the teacher's pkg/graph is a plain node graph
// with no turn awareness), so this is built directly against spec §4.3
// following the CSR conventions pkg/nbg already established.
package hybrid

import (
	"sort"

	"github.com/nbgroute/nbgroute/pkg/nbg"
	"github.com/nbgroute/nbgroute/pkg/turn"
)

const noIncomingEdge = -1

// Graph is the directed state graph produced by Build: NodeState/EdgeState
// arcs flattened into one CSR, plus the per-NBG-node (first_state, n_states)
// block mapping the ordering lift (§4.5) needs.
type Graph struct {
	NumStates uint32

	// NodeFirstState[v]/NodeNumStates[v]: the contiguous state-id range
	// occupied by NBG node v's states.
	NodeFirstState []uint32
	NodeNumStates  []uint32

	// StateHeadNBG[s]: the NBG node this state represents arriving at.
	StateHeadNBG []uint32
	// StateIncomingEdge[s]: the undirected NBG edge_idx the state arrived
	// via, or noIncomingEdge for a node-state.
	StateIncomingEdge []int64

	Offsets []uint64 // len NumStates+1
	Targets []uint32 // len M
	Weight  []uint32 // len M
}

// IsEdgeState reports whether state s is an edge-state (arrived via a
// specific incoming edge) rather than a node-state.
func (g *Graph) IsEdgeState(s uint32) bool { return g.StateIncomingEdge[s] != noIncomingEdge }

// ArcsFrom returns the arc index range leaving state s.
func (g *Graph) ArcsFrom(s uint32) (start, end uint64) { return g.Offsets[s], g.Offsets[s+1] }

type incomingHalfEdge struct {
	halfEdge uint64
	edgeIdx  uint64
	from     uint32
}

// Build materializes the hybrid state graph for one travel mode. table may
// be nil (no turn rules compiled, e.g. a region with no restriction
// relations), in which case every node is simple.
func Build(c *nbg.CSR, table *turn.Table, modeMask uint8) *Graph {
	numNodes := c.NumNodes
	complex := make([]bool, numNodes)
	if table != nil {
		for v := uint32(0); v < numNodes; v++ {
			complex[v] = table.HasRestriction(v)
		}
	}

	incByHead := make([][]incomingHalfEdge, numNodes)
	for u := uint32(0); u < numNodes; u++ {
		start, end := c.EdgesFrom(u)
		for e := start; e < end; e++ {
			if c.Weight[e] == nbg.InfWeight {
				continue
			}
			v := c.Heads[e]
			incByHead[v] = append(incByHead[v], incomingHalfEdge{halfEdge: e, edgeIdx: c.EdgeIdx[e], from: u})
		}
	}
	for v := range incByHead {
		sort.Slice(incByHead[v], func(i, j int) bool { return incByHead[v][i].edgeIdx < incByHead[v][j].edgeIdx })
	}

	g := &Graph{
		NodeFirstState: make([]uint32, numNodes),
		NodeNumStates:  make([]uint32, numNodes),
	}

	var total uint32
	for v := uint32(0); v < numNodes; v++ {
		g.NodeFirstState[v] = total
		var n uint32
		if complex[v] {
			n = uint32(len(incByHead[v]))
		} else {
			n = 1
		}
		g.NodeNumStates[v] = n
		total += n
	}
	g.NumStates = total

	g.StateHeadNBG = make([]uint32, total)
	g.StateIncomingEdge = make([]int64, total)
	stateForHalfEdge := make([]int64, len(c.Heads))
	for i := range stateForHalfEdge {
		stateForHalfEdge[i] = -1
	}

	for v := uint32(0); v < numNodes; v++ {
		first := g.NodeFirstState[v]
		if complex[v] {
			for i, inc := range incByHead[v] {
				s := first + uint32(i)
				g.StateHeadNBG[s] = v
				g.StateIncomingEdge[s] = int64(inc.edgeIdx)
				stateForHalfEdge[inc.halfEdge] = int64(s)
			}
		} else {
			g.StateHeadNBG[first] = v
			g.StateIncomingEdge[first] = noIncomingEdge
		}
	}

	type arc struct {
		from, to uint32
		weight   uint32
	}
	var arcs []arc

	for v := uint32(0); v < numNodes; v++ {
		first, n := g.NodeFirstState[v], g.NodeNumStates[v]
		outStart, outEnd := c.EdgesFrom(v)

		for i := uint32(0); i < n; i++ {
			s := first + i
			fromEdgeIdx := g.StateIncomingEdge[s]

			for oe := outStart; oe < outEnd; oe++ {
				if c.Weight[oe] == nbg.InfWeight {
					continue
				}
				w := c.Heads[oe]
				toEdgeIdx := c.EdgeIdx[oe]

				if fromEdgeIdx != noIncomingEdge && table != nil {
					if !table.Allowed(uint64(fromEdgeIdx), v, toEdgeIdx, modeMask) {
						continue
					}
				}

				var target uint32
				if complex[w] {
					target = uint32(stateForHalfEdge[oe])
				} else {
					target = g.NodeFirstState[w]
				}
				arcs = append(arcs, arc{from: s, to: target, weight: c.Weight[oe]})
			}
		}
	}

	g.Offsets = make([]uint64, total+1)
	for _, a := range arcs {
		g.Offsets[a.from+1]++
	}
	for i := uint32(1); i <= total; i++ {
		g.Offsets[i] += g.Offsets[i-1]
	}
	g.Targets = make([]uint32, len(arcs))
	g.Weight = make([]uint32, len(arcs))
	pos := make([]uint64, total)
	copy(pos, g.Offsets[:total])
	for _, a := range arcs {
		idx := pos[a.from]
		g.Targets[idx] = a.to
		g.Weight[idx] = a.weight
		pos[a.from]++
	}

	return g
}
