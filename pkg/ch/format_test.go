package ch_test

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/nbgroute/nbgroute/pkg/ch"
	"github.com/nbgroute/nbgroute/pkg/hybrid"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
	"github.com/nbgroute/nbgroute/pkg/ordering"
	"github.com/nbgroute/nbgroute/pkg/profile"
)

func buildSmallCH(t *testing.T) *ch.Graph {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 2, ToNodeID: 1, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 2, ToNodeID: 3, WayID: 2, Weight: 200, LengthMM: 2000, HighwayClass: 3},
			{FromNodeID: 3, ToNodeID: 2, WayID: 2, Weight: 200, LengthMM: 2000, HighwayClass: 3},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.1, 3: 1.2},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.1, 3: 103.2},
	}
	c := nbg.Build(result)
	g := hybrid.Build(c, nil, profile.ModeCar.Mask())
	nbgOrder := ordering.OrderNBG(c)
	ebgOrder := ordering.LiftToEBG(g, nbgOrder)
	return ch.Contract(g, ebgOrder, ch.DefaultOptions())
}

func TestTopoAndWeightsRoundTrip(t *testing.T) {
	chg := buildSmallCH(t)

	dir := t.TempDir()
	topoPath := filepath.Join(dir, "ch.topo")
	wtsPath := filepath.Join(dir, "ch.wts")

	if err := ch.WriteTopo(topoPath, chg, 1_700_000_000); err != nil {
		t.Fatalf("WriteTopo: %v", err)
	}
	if err := ch.WriteWeights(wtsPath, chg, 1_700_000_000); err != nil {
		t.Fatalf("WriteWeights: %v", err)
	}

	loaded, err := ch.ReadCH(topoPath, wtsPath)
	if err != nil {
		t.Fatalf("ReadCH: %v", err)
	}

	if loaded.NumStates != chg.NumStates {
		t.Errorf("NumStates = %d, want %d", loaded.NumStates, chg.NumStates)
	}
	for i := range chg.FwdTargets {
		if loaded.FwdTargets[i] != chg.FwdTargets[i] || loaded.FwdWeight[i] != chg.FwdWeight[i] || loaded.FwdMiddle[i] != chg.FwdMiddle[i] {
			t.Errorf("fwd arc %d mismatch: got (%d,%d,%d), want (%d,%d,%d)",
				i, loaded.FwdTargets[i], loaded.FwdWeight[i], loaded.FwdMiddle[i],
				chg.FwdTargets[i], chg.FwdWeight[i], chg.FwdMiddle[i])
		}
	}
	for i := range chg.BwdTargets {
		if loaded.BwdTargets[i] != chg.BwdTargets[i] || loaded.BwdWeight[i] != chg.BwdWeight[i] || loaded.BwdMiddle[i] != chg.BwdMiddle[i] {
			t.Errorf("bwd arc %d mismatch", i)
		}
	}
	for v := range chg.Rank {
		if loaded.Rank[v] != chg.Rank[v] {
			t.Errorf("rank %d: got %d, want %d", v, loaded.Rank[v], chg.Rank[v])
		}
	}
}

func TestReadTopoWrongMagic(t *testing.T) {
	chg := buildSmallCH(t)
	dir := t.TempDir()
	wtsPath := filepath.Join(dir, "ch.wts")
	if err := ch.WriteWeights(wtsPath, chg, 0); err != nil {
		t.Fatalf("WriteWeights: %v", err)
	}
	if _, err := ch.ReadTopo(wtsPath); err == nil {
		t.Fatal("expected error reading a ch.wts file as ch.topo")
	}
}
