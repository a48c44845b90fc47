package nbg

import (
	"fmt"
	"sort"

	"github.com/nbgroute/nbgroute/pkg/format"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

var (
	magicCSR     = format.Magic{'N', 'B', 'G', 'C'}
	magicNodeMap = format.Magic{'N', 'B', 'G', 'M'}
	magicGeo     = format.Magic{'N', 'B', 'G', 'G'}
)

const formatVersion = 1

// WriteCSR writes the nbg.csr artifact (§6.1): header carries n_nodes,
// n_edges_und, created_unix, and inputs_sha for stage-to-stage hash
// chaining; body is offsets/heads/edge_idx; footer is the shared CRC-64
// convention.
func WriteCSR(path string, c *CSR, createdUnix uint64, inputsSHA [32]byte) error {
	w, err := format.Create(path)
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			w.Abort()
		}
	}()

	if err := format.WriteHeader(w, magicCSR, formatVersion); err != nil {
		return err
	}
	numEdgesUnd := uint64(len(c.Attrs))
	for _, v := range []any{c.NumNodes, numEdgesUnd, createdUnix, inputsSHA} {
		if err := format.WriteField(w, v); err != nil {
			return err
		}
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	if err := format.WriteUint64Slice(w, c.Offsets); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, c.Heads); err != nil {
		return err
	}
	if err := format.WriteUint64Slice(w, c.EdgeIdx); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, c.Weight); err != nil {
		return err
	}
	for _, a := range c.Attrs {
		if err := format.WriteField(w, a.LengthMM); err != nil {
			return err
		}
		if err := format.WriteField(w, a.Class); err != nil {
			return err
		}
		if err := format.WriteField(w, a.WayID); err != nil {
			return err
		}
		if err := format.WriteField(w, a.LoNode); err != nil {
			return err
		}
		if err := format.WriteField(w, a.HiNode); err != nil {
			return err
		}
	}
	if err := format.WriteFloat64Slice(w, c.NodeLat); err != nil {
		return err
	}
	if err := format.WriteFloat64Slice(w, c.NodeLon); err != nil {
		return err
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

// ReadCSR reads and fully validates an nbg.csr artifact, including the CSR
// symmetry property (§8.1 #1): every half-edge (u,v) has a mate (v,u) with
// the same EdgeIdx.
func ReadCSR(path string) (*CSR, error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, err
	}
	if magic != magicCSR {
		return nil, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicCSR)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported nbg.csr version %d", rerr.ErrCorrupt, version)
	}

	var numNodes uint32
	var numEdgesUnd, createdUnix uint64
	var inputsSHA [32]byte
	for _, v := range []any{&numNodes, &numEdgesUnd, &createdUnix, &inputsSHA} {
		if err := format.ReadField(r, v); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
	}
	written := 4 + 2 + 4 + 8 + 8 + 32
	if err := format.SkipHeaderPad(r, written); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	c := &CSR{NumNodes: numNodes}
	if c.Offsets, err = format.ReadUint64Slice(r, int(numNodes)+1); err != nil {
		return nil, err
	}
	numHalf := int(c.Offsets[numNodes])
	if c.Heads, err = format.ReadUint32Slice(r, numHalf); err != nil {
		return nil, err
	}
	if c.EdgeIdx, err = format.ReadUint64Slice(r, numHalf); err != nil {
		return nil, err
	}
	if c.Weight, err = format.ReadUint32Slice(r, numHalf); err != nil {
		return nil, err
	}
	c.Attrs = make([]EdgeAttr, numEdgesUnd)
	for i := range c.Attrs {
		if err := format.ReadField(r, &c.Attrs[i].LengthMM); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &c.Attrs[i].Class); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &c.Attrs[i].WayID); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &c.Attrs[i].LoNode); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &c.Attrs[i].HiNode); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
	}
	if c.NodeLat, err = format.ReadFloat64Slice(r, int(numNodes)); err != nil {
		return nil, err
	}
	if c.NodeLon, err = format.ReadFloat64Slice(r, int(numNodes)); err != nil {
		return nil, err
	}

	if err := r.VerifyFooter(); err != nil {
		return nil, err
	}
	if err := ValidateSymmetry(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateSymmetry checks the CSR symmetry invariant (spec §8.1 #1): for
// every half-edge (u,v,k) there is a matching (v,u,k).
func ValidateSymmetry(c *CSR) error {
	type pair struct {
		u, v uint32
		k    uint64
	}
	seen := make(map[pair]bool, len(c.Heads))
	for u := uint32(0); u < c.NumNodes; u++ {
		start, end := c.EdgesFrom(u)
		for e := start; e < end; e++ {
			seen[pair{u, c.Heads[e], c.EdgeIdx[e]}] = true
		}
	}
	for u := uint32(0); u < c.NumNodes; u++ {
		start, end := c.EdgesFrom(u)
		for e := start; e < end; e++ {
			v, k := c.Heads[e], c.EdgeIdx[e]
			if !seen[pair{v, u, k}] {
				return fmt.Errorf("%w: half-edge (%d,%d,%d) has no mate (%d,%d,%d)", rerr.ErrInvariantViolation, u, v, k, v, u, k)
			}
		}
	}
	return nil
}

// WriteNodeMap writes nbg.node_map: a sorted (osm_id -> compact_id) table.
func WriteNodeMap(path string, c *CSR, createdUnix uint64) error {
	w, err := format.Create(path)
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			w.Abort()
		}
	}()
	if err := format.WriteHeader(w, magicNodeMap, formatVersion); err != nil {
		return err
	}
	count := uint64(len(c.OsmNodeID))
	if err := format.WriteField(w, count); err != nil {
		return err
	}
	if err := format.WriteField(w, createdUnix); err != nil {
		return err
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	type row struct {
		osmID   int64
		compact uint32
	}
	rows := make([]row, len(c.OsmNodeID))
	for i, id := range c.OsmNodeID {
		rows[i] = row{osmID: id, compact: uint32(i)}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].osmID < rows[j].osmID })

	for _, rrow := range rows {
		if err := format.WriteField(w, rrow.osmID); err != nil {
			return err
		}
		if err := format.WriteField(w, rrow.compact); err != nil {
			return err
		}
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

// NodeMap is the decoded nbg.node_map artifact.
type NodeMap struct {
	OsmID   []int64
	Compact []uint32
}

// Lookup performs a binary search for the compact id of an OSM node id.
func (m *NodeMap) Lookup(osmID int64) (uint32, bool) {
	i := sort.Search(len(m.OsmID), func(i int) bool { return m.OsmID[i] >= osmID })
	if i < len(m.OsmID) && m.OsmID[i] == osmID {
		return m.Compact[i], true
	}
	return 0, false
}

func ReadNodeMap(path string) (*NodeMap, error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, err
	}
	if magic != magicNodeMap {
		return nil, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicNodeMap)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported nbg.node_map version %d", rerr.ErrCorrupt, version)
	}
	var count, createdUnix uint64
	if err := format.ReadField(r, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &createdUnix); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	_ = createdUnix
	if err := format.SkipHeaderPad(r, 4+2+8+8); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	m := &NodeMap{OsmID: make([]int64, count), Compact: make([]uint32, count)}
	for i := range m.OsmID {
		if err := format.ReadField(r, &m.OsmID[i]); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &m.Compact[i]); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
	}
	if err := r.VerifyFooter(); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteGeo writes nbg.geo: one endpoint-only polyline per logical edge,
// indexed by EdgeIdx. Intermediate shape points are not carried past Stage 3
// (a cartographic-fidelity tradeoff); the two endpoint
// coordinates are enough for the query runtime to render a route's geometry.
func WriteGeo(path string, c *CSR, createdUnix uint64) error {
	w, err := format.Create(path)
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			w.Abort()
		}
	}()
	if err := format.WriteHeader(w, magicGeo, formatVersion); err != nil {
		return err
	}
	count := uint64(len(c.Attrs))
	if err := format.WriteField(w, count); err != nil {
		return err
	}
	if err := format.WriteField(w, createdUnix); err != nil {
		return err
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	lats := make([]float64, 0, count*2)
	lons := make([]float64, 0, count*2)
	for _, a := range c.Attrs {
		lats = append(lats, c.NodeLat[a.LoNode], c.NodeLat[a.HiNode])
		lons = append(lons, c.NodeLon[a.LoNode], c.NodeLon[a.HiNode])
	}
	if err := format.WriteFloat64Slice(w, lats); err != nil {
		return err
	}
	if err := format.WriteFloat64Slice(w, lons); err != nil {
		return err
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

// EdgeGeometry is the decoded nbg.geo artifact: endpoint coordinates indexed
// by EdgeIdx, (lo_lat, lo_lon) -> (hi_lat, hi_lon).
type EdgeGeometry struct {
	LoLat, LoLon []float64
	HiLat, HiLon []float64
}

func ReadGeo(path string) (*EdgeGeometry, error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, err
	}
	if magic != magicGeo {
		return nil, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicGeo)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported nbg.geo version %d", rerr.ErrCorrupt, version)
	}
	var count, createdUnix uint64
	if err := format.ReadField(r, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &createdUnix); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	_ = createdUnix
	if err := format.SkipHeaderPad(r, 4+2+8+8); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	lats, err := format.ReadFloat64Slice(r, int(count)*2)
	if err != nil {
		return nil, err
	}
	lons, err := format.ReadFloat64Slice(r, int(count)*2)
	if err != nil {
		return nil, err
	}

	g := &EdgeGeometry{
		LoLat: make([]float64, count), LoLon: make([]float64, count),
		HiLat: make([]float64, count), HiLon: make([]float64, count),
	}
	for i := uint64(0); i < count; i++ {
		g.LoLat[i], g.LoLon[i] = lats[2*i], lons[2*i]
		g.HiLat[i], g.HiLon[i] = lats[2*i+1], lons[2*i+1]
	}

	if err := r.VerifyFooter(); err != nil {
		return nil, err
	}
	return g, nil
}
