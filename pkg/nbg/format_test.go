package nbg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/nbgroute/nbgroute/pkg/nbg"
	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
)

func buildTestCSR(t *testing.T) *nbg.CSR {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, WayID: 1, Weight: 100, LengthMM: 5000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 10, WayID: 1, Weight: 100, LengthMM: 5000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 30, WayID: 2, Weight: 200, LengthMM: 8000, HighwayClass: 4},
			{FromNodeID: 30, ToNodeID: 20, WayID: 2, Weight: 200, LengthMM: 8000, HighwayClass: 4},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2},
	}
	return nbg.Build(result)
}

func TestCSRRoundTrip(t *testing.T) {
	original := buildTestCSR(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nbg.csr")

	var sha [32]byte
	copy(sha[:], "test-input-hash-placeholder-0000")

	if err := nbg.WriteCSR(path, original, 1_700_000_000, sha); err != nil {
		t.Fatalf("WriteCSR: %v", err)
	}

	loaded, err := nbg.ReadCSR(path)
	if err != nil {
		t.Fatalf("ReadCSR: %v", err)
	}

	if loaded.NumNodes != original.NumNodes {
		t.Errorf("NumNodes: got %d, want %d", loaded.NumNodes, original.NumNodes)
	}
	if loaded.NumHalfEdges() != original.NumHalfEdges() {
		t.Errorf("NumHalfEdges: got %d, want %d", loaded.NumHalfEdges(), original.NumHalfEdges())
	}
	for i := range original.Heads {
		if loaded.Heads[i] != original.Heads[i] {
			t.Errorf("Heads[%d]: got %d, want %d", i, loaded.Heads[i], original.Heads[i])
		}
		if loaded.Weight[i] != original.Weight[i] {
			t.Errorf("Weight[%d]: got %d, want %d", i, loaded.Weight[i], original.Weight[i])
		}
	}
	for i, a := range original.Attrs {
		la := loaded.Attrs[i]
		if la != a {
			t.Errorf("Attrs[%d]: got %+v, want %+v", i, la, a)
		}
	}
}

func TestCSRRoundTripDetectsCorruption(t *testing.T) {
	original := buildTestCSR(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nbg.csr")

	if err := nbg.WriteCSR(path, original, 0, [32]byte{}); err != nil {
		t.Fatalf("WriteCSR: %v", err)
	}

	// Flip a byte in the middle of the file; the footer CRC must catch it.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	mid := len(data) / 2
	data[mid] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := nbg.ReadCSR(path); err == nil {
		t.Fatal("expected corruption to be detected, got nil error")
	}
}

func TestNodeMapRoundTrip(t *testing.T) {
	original := buildTestCSR(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nbg.node_map")

	if err := nbg.WriteNodeMap(path, original, 1_700_000_000); err != nil {
		t.Fatalf("WriteNodeMap: %v", err)
	}

	m, err := nbg.ReadNodeMap(path)
	if err != nil {
		t.Fatalf("ReadNodeMap: %v", err)
	}

	for i, osmID := range original.OsmNodeID {
		compact, ok := m.Lookup(osmID)
		if !ok {
			t.Fatalf("Lookup(%d): not found", osmID)
		}
		if compact != uint32(i) {
			t.Errorf("Lookup(%d) = %d, want %d", osmID, compact, i)
		}
	}
	if _, ok := m.Lookup(-999999); ok {
		t.Error("Lookup of unknown OSM id should return ok=false")
	}
}

func TestGeoRoundTrip(t *testing.T) {
	original := buildTestCSR(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nbg.geo")

	if err := nbg.WriteGeo(path, original, 0); err != nil {
		t.Fatalf("WriteGeo: %v", err)
	}
	g, err := nbg.ReadGeo(path)
	if err != nil {
		t.Fatalf("ReadGeo: %v", err)
	}
	if len(g.LoLat) != len(original.Attrs) {
		t.Fatalf("len(LoLat) = %d, want %d", len(g.LoLat), len(original.Attrs))
	}
	for i, a := range original.Attrs {
		wantLoLat, wantLoLon := original.NodeLat[a.LoNode], original.NodeLon[a.LoNode]
		if g.LoLat[i] != wantLoLat || g.LoLon[i] != wantLoLon {
			t.Errorf("edge %d lo endpoint: got (%f,%f), want (%f,%f)", i, g.LoLat[i], g.LoLon[i], wantLoLat, wantLoLon)
		}
	}
}
