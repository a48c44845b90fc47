package hybrid

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/nbgroute/nbgroute/pkg/nbg"
	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
	"github.com/nbgroute/nbgroute/pkg/profile"
	"github.com/nbgroute/nbgroute/pkg/turn"
)

// buildYJunction mirrors pkg/turn's fixture: via(20) connects to 10, 30, 40.
func buildYJunction(t *testing.T) *nbg.CSR {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 10, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 30, WayID: 2, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 30, ToNodeID: 20, WayID: 2, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 40, WayID: 3, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 40, ToNodeID: 20, WayID: 3, Weight: 100, LengthMM: 1000, HighwayClass: 3},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.01, 30: 1.02, 40: 1.03},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.0, 30: 103.0, 40: 103.0},
	}
	return nbg.Build(result)
}

func TestBuildNoRestrictionsAllSimple(t *testing.T) {
	c := buildYJunction(t)
	g := Build(c, nil, profile.ModeCar.Mask())

	if g.NumStates != c.NumNodes {
		t.Fatalf("NumStates = %d, want %d (no restrictions -> one state per node)", g.NumStates, c.NumNodes)
	}
	for v := uint32(0); v < c.NumNodes; v++ {
		if g.NodeNumStates[v] != 1 {
			t.Errorf("node %d has %d states, want 1", v, g.NodeNumStates[v])
		}
		if g.IsEdgeState(g.NodeFirstState[v]) {
			t.Errorf("node %d's sole state should be a node-state", v)
		}
	}
}

func TestBuildComplexNodeGetsEdgeStatePerIncomingEdge(t *testing.T) {
	c := buildYJunction(t)
	idx := indexOSM(c)
	via := idx[20]

	rel := osmparser.Restriction{
		RelationID: 1,
		Tags:       osm.Tags{{Key: "type", Value: "restriction"}, {Key: "restriction", Value: "no_left_turn"}},
		Members: []osmparser.RestrictionMember{
			{Role: "from", WayID: 1, IsWay: true},
			{Role: "via", NodeID: 20, IsWay: false},
			{Role: "to", WayID: 2, IsWay: true},
		},
	}
	rules, unresolved := turn.Compile(c, []osmparser.Restriction{rel}, profile.Car{})
	if len(unresolved) != 0 {
		t.Fatalf("unexpected unresolved rules: %+v", unresolved)
	}
	table := turn.NewTable(rules)

	g := Build(c, table, profile.ModeCar.Mask())

	// via has 3 traversable incoming half-edges (from 10, 30, 40), so it
	// must get 3 edge-states, and every other node stays a single
	// node-state.
	if g.NodeNumStates[via] != 3 {
		t.Fatalf("node %d (via) has %d states, want 3", via, g.NodeNumStates[via])
	}
	wantTotal := uint32(0)
	for v := uint32(0); v < c.NumNodes; v++ {
		if v == via {
			wantTotal += 3
		} else {
			wantTotal += 1
		}
	}
	if g.NumStates != wantTotal {
		t.Fatalf("NumStates = %d, want %d", g.NumStates, wantTotal)
	}
	for i := uint32(0); i < g.NodeNumStates[via]; i++ {
		s := g.NodeFirstState[via] + i
		if !g.IsEdgeState(s) {
			t.Errorf("state %d at complex node should be an edge-state", s)
		}
	}
}

func TestBuildBannedTurnHasNoArc(t *testing.T) {
	c := buildYJunction(t)
	idx := indexOSM(c)
	via := idx[20]

	rel := osmparser.Restriction{
		RelationID: 1,
		Tags:       osm.Tags{{Key: "type", Value: "restriction"}, {Key: "restriction", Value: "no_left_turn"}},
		Members: []osmparser.RestrictionMember{
			{Role: "from", WayID: 1, IsWay: true},
			{Role: "via", NodeID: 20, IsWay: false},
			{Role: "to", WayID: 2, IsWay: true},
		},
	}
	rules, _ := turn.Compile(c, []osmparser.Restriction{rel}, profile.Car{})
	table := turn.NewTable(rules)
	g := Build(c, table, profile.ModeCar.Mask())

	// Find the edge-state for the incoming edge from way 1 (from node 10),
	// and verify it has no arc continuing onto way 2 (the banned turn),
	// but still has an arc onto way 3.
	var fromWay1State uint32 = ^uint32(0)
	for i := uint32(0); i < g.NodeNumStates[via]; i++ {
		s := g.NodeFirstState[via] + i
		// edge_idx 0 is the first logical edge compiled (way 1).
		if g.StateIncomingEdge[s] == 0 {
			fromWay1State = s
		}
	}
	if fromWay1State == ^uint32(0) {
		t.Fatal("could not find edge-state for incoming edge on way 1")
	}

	start, end := g.ArcsFrom(fromWay1State)
	if end-start == 0 {
		t.Fatal("expected at least one outgoing arc (toward way 3)")
	}
	sawWay3 := false
	for a := start; a < end; a++ {
		target := g.Targets[a]
		if target == g.NodeFirstState[via] {
			t.Error("should never arc back into the via node's own state range incorrectly")
		}
		if target == g.NodeFirstState[idx[30]] {
			t.Error("banned turn way 1 -> way 2 still has an arc onto node 30")
		}
		if target == g.NodeFirstState[idx[40]] {
			sawWay3 = true
		}
	}
	if !sawWay3 {
		t.Error("expected an arc onto way 3 (node 40)")
	}
}

// indexOSM maps OSM node id -> compact id for test convenience.
func indexOSM(c *nbg.CSR) map[int64]uint32 {
	m := make(map[int64]uint32, len(c.OsmNodeID))
	for compact, osmID := range c.OsmNodeID {
		m[osmID] = uint32(compact)
	}
	return m
}
