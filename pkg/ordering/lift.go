package ordering

import (
	"github.com/nbgroute/nbgroute/pkg/hybrid"
)

// EBGOrdering is the lifted elimination order over hybrid state ids:
// Perm[s] is state s's rank, InvPerm its inverse.
type EBGOrdering struct {
	Perm    []uint32
	InvPerm []uint32
}

// LiftToEBG assigns ranks to every hybrid state given the NBG-level
// ordering, per §4.5: all states with the same head NBG node occupy
// consecutive ranks positioned where that node sits in the NBG order, and
// within a node's block the local order follows incoming-edge edge_idx
// ascending — already the order hybrid.Build lays its state blocks out in
// (see hybrid.Graph.NodeFirstState/NodeNumStates), so the lift only needs
// to walk NBG nodes in rank order and copy each one's existing state block
// forward.
func LiftToEBG(g *hybrid.Graph, nbgOrder *NBGOrdering) *EBGOrdering {
	numStates := g.NumStates
	perm := make([]uint32, numStates)

	var next uint32
	for rank := uint32(0); rank < uint32(len(nbgOrder.InvPerm)); rank++ {
		v := nbgOrder.InvPerm[rank]
		first, n := g.NodeFirstState[v], g.NodeNumStates[v]
		for i := uint32(0); i < n; i++ {
			perm[first+i] = next
			next++
		}
	}

	invPerm := make([]uint32, numStates)
	for s, rank := range perm {
		invPerm[rank] = uint32(s)
	}
	return &EBGOrdering{Perm: perm, InvPerm: invPerm}
}
