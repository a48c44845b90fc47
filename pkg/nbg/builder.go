package nbg

import (
	"sort"

	"github.com/paulmach/osm"

	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
)

type segKey struct {
	lo, hi uint32
	way    int64
}

type segment struct {
	lo, hi       uint32
	fwd, bwd     uint32 // InfWeight if that direction is not traversable
	lengthMM     uint32
	class        uint8
	way          int64
}

// Build compiles a parsed OSM result into the Node-Based Graph CSR. Node IDs
// are assigned compactly in first-seen order, matching the teacher's
// Build(); segments are then grouped by (lo, hi, way) so that a way
// traversable in only one direction still gets a symmetric pair of
// half-edges, the reverse direction carrying InfWeight.
func Build(result *osmparser.ParseResult) *CSR {
	edges := result.Edges
	if len(edges) == 0 {
		return &CSR{}
	}

	nodeSet := make(map[osm.NodeID]uint32)
	var nodeIDs []osm.NodeID

	compact := func(id osm.NodeID) uint32 {
		if idx, ok := nodeSet[id]; ok {
			return idx
		}
		idx := uint32(len(nodeIDs))
		nodeSet[id] = idx
		nodeIDs = append(nodeIDs, id)
		return idx
	}

	for i := range edges {
		compact(edges[i].FromNodeID)
		compact(edges[i].ToNodeID)
	}
	numNodes := uint32(len(nodeIDs))

	segments := make(map[segKey]*segment)
	var order []segKey

	for _, e := range edges {
		cu := compact(e.FromNodeID)
		cv := compact(e.ToNodeID)
		lo, hi := cu, cv
		forward := true
		if lo > hi {
			lo, hi = hi, lo
			forward = false
		}
		key := segKey{lo: lo, hi: hi, way: int64(e.WayID)}
		s, ok := segments[key]
		if !ok {
			s = &segment{lo: lo, hi: hi, fwd: InfWeight, bwd: InfWeight, lengthMM: e.LengthMM, class: e.HighwayClass, way: int64(e.WayID)}
			segments[key] = s
			order = append(order, key)
		}
		if forward {
			s.fwd = e.Weight
		} else {
			s.bwd = e.Weight
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.lo != b.lo {
			return a.lo < b.lo
		}
		if a.hi != b.hi {
			return a.hi < b.hi
		}
		return a.way < b.way
	})

	numSegments := uint32(len(order))
	attrs := make([]EdgeAttr, numSegments)

	type halfEdge struct {
		from, to uint32
		weight   uint32
		edgeIdx  uint64
	}
	halfEdges := make([]halfEdge, 0, numSegments*2)

	for i, key := range order {
		s := segments[key]
		attrs[i] = EdgeAttr{LengthMM: s.lengthMM, Class: s.class, WayID: s.way, LoNode: s.lo, HiNode: s.hi}
		halfEdges = append(halfEdges,
			halfEdge{from: s.lo, to: s.hi, weight: s.fwd, edgeIdx: uint64(i)},
			halfEdge{from: s.hi, to: s.lo, weight: s.bwd, edgeIdx: uint64(i)},
		)
	}

	sort.Slice(halfEdges, func(i, j int) bool {
		if halfEdges[i].from != halfEdges[j].from {
			return halfEdges[i].from < halfEdges[j].from
		}
		return halfEdges[i].to < halfEdges[j].to
	})

	numHalf := uint64(len(halfEdges))
	offsets := make([]uint64, numNodes+1)
	heads := make([]uint32, numHalf)
	edgeIdx := make([]uint64, numHalf)
	weight := make([]uint32, numHalf)

	for i, he := range halfEdges {
		heads[i] = he.to
		edgeIdx[i] = he.edgeIdx
		weight[i] = he.weight
		offsets[he.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		offsets[i] += offsets[i-1]
	}

	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	osmNodeID := make([]int64, numNodes)
	for id, idx := range nodeSet {
		nodeLat[idx] = result.NodeLat[id]
		nodeLon[idx] = result.NodeLon[id]
		osmNodeID[idx] = int64(id)
	}

	return &CSR{
		NumNodes:  numNodes,
		Offsets:   offsets,
		Heads:     heads,
		EdgeIdx:   edgeIdx,
		Weight:    weight,
		Attrs:     attrs,
		NodeLat:   nodeLat,
		NodeLon:   nodeLon,
		OsmNodeID: osmNodeID,
	}
}
