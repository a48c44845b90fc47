package nbg

// UnionFind implements a disjoint-set data structure with path halving and
// union by rank, carried over verbatim from the teacher's
// pkg/graph/component.go.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{parent: parent, rank: make([]byte, n), size: size}
}

func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *UnionFind) Union(x, y uint32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// LargestComponent returns the compact node ids of the largest weakly
// connected component. Only traversable half-edges (Weight != InfWeight)
// count as connectivity — a street that is oneway in both logical
// directions being InfWeight would otherwise wrongly union the two ends.
func LargestComponent(c *CSR) []uint32 {
	if c.NumNodes == 0 {
		return nil
	}
	uf := NewUnionFind(c.NumNodes)
	for u := uint32(0); u < c.NumNodes; u++ {
		start, end := c.EdgesFrom(u)
		for e := start; e < end; e++ {
			if c.Weight[e] == InfWeight {
				continue
			}
			uf.Union(u, c.Heads[e])
		}
	}
	bestRoot, bestSize := uint32(0), uint32(0)
	for i := uint32(0); i < c.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot, bestSize = root, uf.size[root]
		}
	}
	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < c.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent creates a new CSR containing only the given nodes,
// remapped to a dense [0, len(nodes)) id space.
func FilterToComponent(c *CSR, nodes []uint32) *CSR {
	if len(nodes) == 0 {
		return &CSR{}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}
	numNodes := uint32(len(nodes))

	type halfEdge struct {
		from, to uint32
		weight   uint32
		edgeIdx  uint64
	}
	var halfEdges []halfEdge
	keptAttrIdx := make(map[uint64]uint64)
	var newAttrs []EdgeAttr

	for _, oldU := range nodes {
		start, end := c.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			oldV := c.Heads[e]
			newV, ok := oldToNew[oldV]
			if !ok {
				continue
			}
			oldAttr := c.EdgeIdx[e]
			newAttr, ok := keptAttrIdx[oldAttr]
			if !ok {
				newAttr = uint64(len(newAttrs))
				a := c.Attrs[oldAttr]
				a.LoNode, a.HiNode = oldToNew[a.LoNode], oldToNew[a.HiNode]
				newAttrs = append(newAttrs, a)
				keptAttrIdx[oldAttr] = newAttr
			}
			halfEdges = append(halfEdges, halfEdge{from: oldToNew[oldU], to: newV, weight: c.Weight[e], edgeIdx: newAttr})
		}
	}

	numHalf := uint64(len(halfEdges))
	offsets := make([]uint64, numNodes+1)
	for _, he := range halfEdges {
		offsets[he.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		offsets[i] += offsets[i-1]
	}

	heads := make([]uint32, numHalf)
	edgeIdx := make([]uint64, numHalf)
	weight := make([]uint32, numHalf)
	pos := make([]uint64, numNodes)
	copy(pos, offsets[:numNodes])
	for _, he := range halfEdges {
		idx := pos[he.from]
		heads[idx] = he.to
		edgeIdx[idx] = he.edgeIdx
		weight[idx] = he.weight
		pos[he.from]++
	}

	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	osmNodeID := make([]int64, numNodes)
	for newIdx, oldIdx := range nodes {
		nodeLat[newIdx] = c.NodeLat[oldIdx]
		nodeLon[newIdx] = c.NodeLon[oldIdx]
		osmNodeID[newIdx] = c.OsmNodeID[oldIdx]
	}

	return &CSR{
		NumNodes:  numNodes,
		Offsets:   offsets,
		Heads:     heads,
		EdgeIdx:   edgeIdx,
		Weight:    weight,
		Attrs:     newAttrs,
		NodeLat:   nodeLat,
		NodeLon:   nodeLon,
		OsmNodeID: osmNodeID,
	}
}
