package query

import (
	"math"

	"github.com/tidwall/rtree"

	"github.com/nbgroute/nbgroute/pkg/geo"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

// ErrPointTooFar is returned when the query point has no road within
// maxSnapDistMeters.
var ErrPointTooFar = rerr.ErrPointTooFar

const maxSnapDistMeters = 500.0
const metersPerDegreeLat = 111_320.0

// SnapResult is a query point projected onto the nearest logical NBG edge.
type SnapResult struct {
	EdgeIdx    uint64  // index into nbg.CSR.Attrs
	NodeU      uint32  // EdgeAttr.LoNode
	NodeV      uint32  // EdgeAttr.HiNode
	Ratio      float64 // projection ratio along U->V, in [0,1]
	DistMeters float64
}

// Snapper answers nearest-road queries over an R-tree of edge bounding
// boxes, replacing the teacher's hand-rolled flat sorted grid (snap.go)
// with the spec's §4.8 tidwall/rtree index — a dependency the teacher
// required but never actually wired.
type Snapper struct {
	tree rtree.RTreeG[uint64]
	c    *nbg.CSR
}

// NewSnapper indexes every logical edge's endpoint bounding box.
func NewSnapper(c *nbg.CSR) *Snapper {
	s := &Snapper{c: c}
	for i, a := range c.Attrs {
		b := geo.Bound(c.NodeLat[a.LoNode], c.NodeLon[a.LoNode], c.NodeLat[a.HiNode], c.NodeLon[a.HiNode])
		s.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, uint64(i))
	}
	return s
}

// Snap finds the nearest logical edge to (lat, lon), expanding the search
// box until a candidate is found or maxSnapDistMeters is exceeded.
func (s *Snapper) Snap(lat, lon float64) (SnapResult, error) {
	p := geo.Point(lat, lon)

	var best SnapResult
	bestDist := math.Inf(1)
	found := false

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}

	for _, radiusMeters := range [...]float64{100, 250, maxSnapDistMeters} {
		degLat := radiusMeters / metersPerDegreeLat
		degLon := radiusMeters / (metersPerDegreeLat * cosLat)
		min := [2]float64{p[0] - degLon, p[1] - degLat}
		max := [2]float64{p[0] + degLon, p[1] + degLat}

		s.tree.Search(min, max, func(_, _ [2]float64, edgeIdx uint64) bool {
			a := s.c.Attrs[edgeIdx]
			d, ratio := geo.PointToSegmentDist(
				lat, lon,
				s.c.NodeLat[a.LoNode], s.c.NodeLon[a.LoNode],
				s.c.NodeLat[a.HiNode], s.c.NodeLon[a.HiNode],
			)
			if d < bestDist {
				bestDist = d
				found = true
				best = SnapResult{EdgeIdx: uint64(edgeIdx), NodeU: a.LoNode, NodeV: a.HiNode, Ratio: ratio, DistMeters: d}
			}
			return true
		})
		if found {
			break
		}
	}

	if !found || bestDist > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return best, nil
}
