// Package nbg implements Stage 3 of the pipeline: compiling parsed OSM ways
// into the Node-Based Graph, a symmetric undirected CSR where every
// traversal direction is an explicit half-edge (weight INF when the
// direction is not traversable, e.g. a oneway street's reverse). The
// compact-ID-assignment-in-first-seen-order plus sort-by-(from,to)-then-
// prefix-sum algorithm is carried over from the teacher's
// pkg/graph/builder.go; UnionFind/LargestComponent/FilterToComponent in
// component.go are the teacher's pkg/graph/component.go retyped onto CSR.
package nbg

import "math"

// InfWeight marks a half-edge direction as non-traversable.
const InfWeight = math.MaxUint32

// EdgeAttr is the per-logical-edge (undirected road segment) attribute
// record shared by both of its half-edges.
type EdgeAttr struct {
	LengthMM uint32
	Class    uint8
	WayID    int64

	// LoNode/HiNode are the compact ids of the edge's two endpoints
	// (LoNode < HiNode), letting downstream stages (turn, hybrid, nbg.geo)
	// recover an edge's geometry/adjacency without rescanning the CSR.
	LoNode, HiNode uint32
}

// CSR is the Node-Based Graph: an undirected adjacency structure where
// every physical segment contributes exactly two half-edges (lo->hi and
// hi->lo), sharing one EdgeIdx. A half-edge whose direction is not
// traversable carries Weight == InfWeight.
type CSR struct {
	NumNodes uint32
	Offsets  []uint64 // len NumNodes+1
	Heads    []uint32 // len 2E, target compact node id
	EdgeIdx  []uint64 // len 2E, index into Attrs; half-edge mates share a value
	Weight   []uint32 // len 2E, travel-time millis, or InfWeight
	Attrs    []EdgeAttr
	NodeLat  []float64
	NodeLon  []float64

	// OsmNodeID maps compact id -> original OSM node id, persisted as
	// nbg.node_map.
	OsmNodeID []int64
}

// EdgesFrom returns the half-edge index range originating at node u.
func (c *CSR) EdgesFrom(u uint32) (start, end uint64) {
	return c.Offsets[u], c.Offsets[u+1]
}

// NumHalfEdges returns the total half-edge count (2x logical edges).
func (c *CSR) NumHalfEdges() int { return len(c.Heads) }
