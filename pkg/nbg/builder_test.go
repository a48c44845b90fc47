package nbg

import (
	"testing"

	"github.com/paulmach/osm"

	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
)

func TestBuildBidirectionalWay(t *testing.T) {
	// A two-way residential street: one RawEdge each direction, same WayID.
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 100, ToNodeID: 200, WayID: 1, Weight: 1000, LengthMM: 50_000, HighwayClass: 3},
			{FromNodeID: 200, ToNodeID: 100, WayID: 1, Weight: 1000, LengthMM: 50_000, HighwayClass: 3},
		},
		NodeLat: map[osm.NodeID]float64{100: 1.0, 200: 1.1},
		NodeLon: map[osm.NodeID]float64{100: 103.0, 200: 103.1},
	}

	c := Build(result)
	if c.NumNodes != 2 {
		t.Fatalf("NumNodes = %d, want 2", c.NumNodes)
	}
	if len(c.Attrs) != 1 {
		t.Fatalf("len(Attrs) = %d, want 1 (single logical edge)", len(c.Attrs))
	}
	if c.NumHalfEdges() != 2 {
		t.Fatalf("NumHalfEdges = %d, want 2", c.NumHalfEdges())
	}
	for i := uint32(0); i < c.NumNodes; i++ {
		start, end := c.EdgesFrom(i)
		if end-start != 1 {
			t.Errorf("node %d has %d half-edges, want 1", i, end-start)
		}
	}
}

func TestBuildOnewayGetsInfWeightMate(t *testing.T) {
	// A oneway street only produces a RawEdge in the traversable direction;
	// the builder must still synthesize a mate half-edge at InfWeight so the
	// CSR symmetry invariant holds.
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, WayID: 5, Weight: 700, LengthMM: 20_000, HighwayClass: 4},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.05},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.05},
	}

	c := Build(result)
	if err := ValidateSymmetry(c); err != nil {
		t.Fatalf("ValidateSymmetry: %v", err)
	}

	var sawInf, sawFinite bool
	for _, w := range c.Weight {
		if w == InfWeight {
			sawInf = true
		} else {
			sawFinite = true
		}
	}
	if !sawInf || !sawFinite {
		t.Fatalf("expected one InfWeight half-edge and one finite half-edge, got weights=%v", c.Weight)
	}
}

func TestBuildParallelWaysStayDistinct(t *testing.T) {
	// Two different ways connecting the same pair of nodes (e.g. a service
	// road running alongside a primary) must produce two logical edges, not
	// get merged into one.
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, WayID: 11, Weight: 300, LengthMM: 10_000, HighwayClass: 2},
			{FromNodeID: 2, ToNodeID: 1, WayID: 11, Weight: 300, LengthMM: 10_000, HighwayClass: 2},
			{FromNodeID: 1, ToNodeID: 2, WayID: 12, Weight: 900, LengthMM: 10_000, HighwayClass: 6},
			{FromNodeID: 2, ToNodeID: 1, WayID: 12, Weight: 900, LengthMM: 10_000, HighwayClass: 6},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.01},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.01},
	}

	c := Build(result)
	if len(c.Attrs) != 2 {
		t.Fatalf("len(Attrs) = %d, want 2 distinct logical edges", len(c.Attrs))
	}
	for i := uint32(0); i < c.NumNodes; i++ {
		start, end := c.EdgesFrom(i)
		if end-start != 2 {
			t.Errorf("node %d has %d half-edges, want 2", i, end-start)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	c := Build(&osmparser.ParseResult{})
	if c.NumNodes != 0 || c.NumHalfEdges() != 0 {
		t.Fatalf("expected empty CSR, got NumNodes=%d NumHalfEdges=%d", c.NumNodes, c.NumHalfEdges())
	}
}

func TestBuildEdgeAttrEndpointsOrdered(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 200, ToNodeID: 100, WayID: 1, Weight: 1000, LengthMM: 50_000, HighwayClass: 3},
		},
		NodeLat: map[osm.NodeID]float64{100: 1.0, 200: 1.1},
		NodeLon: map[osm.NodeID]float64{100: 103.0, 200: 103.1},
	}
	c := Build(result)
	if len(c.Attrs) != 1 {
		t.Fatalf("len(Attrs) = %d, want 1", len(c.Attrs))
	}
	a := c.Attrs[0]
	if a.LoNode >= a.HiNode {
		t.Errorf("LoNode=%d should be < HiNode=%d", a.LoNode, a.HiNode)
	}
}
