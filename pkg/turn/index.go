package turn

import (
	"github.com/paulmach/osm"

	"github.com/nbgroute/nbgroute/pkg/nbg"
)

// wayIndex supports the two lookups the turn compiler needs: resolving an
// OSM node id to its NBG compact id, and finding the logical edge of a given
// way that touches a given compact node (a way may be split into several
// logical edges if it self-intersects or crosses a junction).
type wayIndex struct {
	osmToCompact map[int64]uint32
	byWay        map[int64][]uint64 // way id -> edge indices
	c            *nbg.CSR
}

func indexWayEndpoints(c *nbg.CSR) *wayIndex {
	idx := &wayIndex{
		osmToCompact: make(map[int64]uint32, len(c.OsmNodeID)),
		byWay:        make(map[int64][]uint64),
		c:            c,
	}
	for compact, osmID := range c.OsmNodeID {
		idx.osmToCompact[osmID] = uint32(compact)
	}
	for i, a := range c.Attrs {
		idx.byWay[a.WayID] = append(idx.byWay[a.WayID], uint64(i))
	}
	return idx
}

func (idx *wayIndex) nodeID(id osm.NodeID) (uint32, bool) {
	compact, ok := idx.osmToCompact[int64(id)]
	return compact, ok
}

// edgeTerminatingAt and edgeStartingAt are identical lookups (the logical
// edge is undirected) — both just require the edge to touch viaNode. The
// distinct names document which side of the restriction (incoming vs
// outgoing) the caller is resolving.

func (idx *wayIndex) edgeTerminatingAt(wayID osm.WayID, viaNode uint32) (uint64, bool) {
	return idx.edgeTouching(int64(wayID), viaNode)
}

func (idx *wayIndex) edgeStartingAt(wayID osm.WayID, viaNode uint32) (uint64, bool) {
	return idx.edgeTouching(int64(wayID), viaNode)
}

func (idx *wayIndex) edgeTouching(wayID int64, viaNode uint32) (uint64, bool) {
	for _, e := range idx.byWay[wayID] {
		a := idx.c.Attrs[e]
		if a.LoNode == viaNode || a.HiNode == viaNode {
			return e, true
		}
	}
	return 0, false
}
