package ch

import (
	"math"
	"testing"

	"github.com/paulmach/osm"

	"github.com/nbgroute/nbgroute/pkg/hybrid"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
	"github.com/nbgroute/nbgroute/pkg/ordering"
	"github.com/nbgroute/nbgroute/pkg/profile"
)

// buildTestGrid creates a small grid for testing:
//
//	0 ---100--- 1 ---200--- 2
//	|                       |
//	300                    400
//	|                       |
//	3 ---500--- 4 ---600--- 5
//
// All edges are bidirectional, no turn restrictions.
func buildTestGrid(t *testing.T) (*nbg.CSR, *hybrid.Graph) {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 10, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 20, ToNodeID: 30, WayID: 2, Weight: 200, LengthMM: 2000, HighwayClass: 3},
			{FromNodeID: 30, ToNodeID: 20, WayID: 2, Weight: 200, LengthMM: 2000, HighwayClass: 3},
			{FromNodeID: 10, ToNodeID: 40, WayID: 3, Weight: 300, LengthMM: 3000, HighwayClass: 3},
			{FromNodeID: 40, ToNodeID: 10, WayID: 3, Weight: 300, LengthMM: 3000, HighwayClass: 3},
			{FromNodeID: 30, ToNodeID: 60, WayID: 4, Weight: 400, LengthMM: 4000, HighwayClass: 3},
			{FromNodeID: 60, ToNodeID: 30, WayID: 4, Weight: 400, LengthMM: 4000, HighwayClass: 3},
			{FromNodeID: 40, ToNodeID: 50, WayID: 5, Weight: 500, LengthMM: 5000, HighwayClass: 3},
			{FromNodeID: 50, ToNodeID: 40, WayID: 5, Weight: 500, LengthMM: 5000, HighwayClass: 3},
			{FromNodeID: 50, ToNodeID: 60, WayID: 6, Weight: 600, LengthMM: 6000, HighwayClass: 3},
			{FromNodeID: 60, ToNodeID: 50, WayID: 6, Weight: 600, LengthMM: 6000, HighwayClass: 3},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.0, 30: 1.0, 40: 1.1, 50: 1.1, 60: 1.1},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 103.0, 50: 103.1, 60: 103.2},
	}
	c := nbg.Build(result)
	g := hybrid.Build(c, nil, profile.ModeCar.Mask())
	return c, g
}

func contractGraph(c *nbg.CSR, g *hybrid.Graph) *Graph {
	nbgOrder := ordering.OrderNBG(c)
	ebgOrder := ordering.LiftToEBG(g, nbgOrder)
	return Contract(g, ebgOrder, DefaultOptions())
}

// plainDijkstra runs standard Dijkstra directly on the hybrid state graph.
func plainDijkstra(g *hybrid.Graph, source, target uint32) uint32 {
	dist := make([]uint32, g.NumStates)
	for i := range dist {
		dist[i] = math.MaxUint32
	}
	dist[source] = 0

	type item struct {
		node uint32
		dist uint32
	}
	var pq []item
	pq = append(pq, item{source, 0})

	for len(pq) > 0 {
		minIdx := 0
		for i := 1; i < len(pq); i++ {
			if pq[i].dist < pq[minIdx].dist {
				minIdx = i
			}
		}
		cur := pq[minIdx]
		pq[minIdx] = pq[len(pq)-1]
		pq = pq[:len(pq)-1]

		if cur.dist > dist[cur.node] {
			continue
		}
		if cur.node == target {
			return cur.dist
		}
		start, end := g.ArcsFrom(cur.node)
		for e := start; e < end; e++ {
			v := g.Targets[e]
			newDist := cur.dist + g.Weight[e]
			if newDist < dist[v] {
				dist[v] = newDist
				pq = append(pq, item{v, newDist})
			}
		}
	}
	return dist[target]
}

// chBidirectionalDijkstra runs bidirectional meet-in-the-middle search over
// the CH overlay, mirroring the teacher's test-only query implementation.
func chBidirectionalDijkstra(ch *Graph, source, target uint32) uint32 {
	distFwd := make([]uint32, ch.NumStates)
	distBwd := make([]uint32, ch.NumStates)
	for i := range distFwd {
		distFwd[i] = math.MaxUint32
		distBwd[i] = math.MaxUint32
	}
	distFwd[source] = 0
	distBwd[target] = 0

	type item struct {
		node uint32
		dist uint32
	}
	var fwdPQ, bwdPQ []item
	fwdPQ = append(fwdPQ, item{source, 0})
	bwdPQ = append(bwdPQ, item{target, 0})

	mu := uint32(math.MaxUint32)

	popMin := func(pq *[]item) item {
		minIdx := 0
		for i := 1; i < len(*pq); i++ {
			if (*pq)[i].dist < (*pq)[minIdx].dist {
				minIdx = i
			}
		}
		cur := (*pq)[minIdx]
		(*pq)[minIdx] = (*pq)[len(*pq)-1]
		*pq = (*pq)[:len(*pq)-1]
		return cur
	}
	peekMin := func(pq []item) uint32 {
		if len(pq) == 0 {
			return math.MaxUint32
		}
		min := pq[0].dist
		for _, it := range pq[1:] {
			if it.dist < min {
				min = it.dist
			}
		}
		return min
	}

	for len(fwdPQ) > 0 || len(bwdPQ) > 0 {
		if len(fwdPQ) > 0 && peekMin(fwdPQ) < mu {
			cur := popMin(&fwdPQ)
			if cur.dist <= distFwd[cur.node] {
				if distBwd[cur.node] < math.MaxUint32 {
					if cand := cur.dist + distBwd[cur.node]; cand < mu {
						mu = cand
					}
				}
				start, end := ch.ArcsFrom(cur.node)
				for e := start; e < end; e++ {
					v := ch.FwdTargets[e]
					newDist := cur.dist + ch.FwdWeight[e]
					if newDist < distFwd[v] {
						distFwd[v] = newDist
						fwdPQ = append(fwdPQ, item{v, newDist})
					}
				}
			}
		}
		if len(bwdPQ) > 0 && peekMin(bwdPQ) < mu {
			cur := popMin(&bwdPQ)
			if cur.dist <= distBwd[cur.node] {
				if distFwd[cur.node] < math.MaxUint32 {
					if cand := distFwd[cur.node] + cur.dist; cand < mu {
						mu = cand
					}
				}
				start, end := ch.ArcsFromBwd(cur.node)
				for e := start; e < end; e++ {
					v := ch.BwdTargets[e]
					newDist := cur.dist + ch.BwdWeight[e]
					if newDist < distBwd[v] {
						distBwd[v] = newDist
						bwdPQ = append(bwdPQ, item{v, newDist})
					}
				}
			}
		}
		if peekMin(fwdPQ) >= mu && peekMin(bwdPQ) >= mu {
			break
		}
	}

	return mu
}

func TestContractGridRanksArePermutation(t *testing.T) {
	c, g := buildTestGrid(t)
	ch := contractGraph(c, g)

	if ch.NumStates != g.NumStates {
		t.Fatalf("NumStates = %d, want %d", ch.NumStates, g.NumStates)
	}
	seen := make(map[uint32]bool)
	for _, r := range ch.Rank {
		if r >= ch.NumStates {
			t.Errorf("rank %d >= NumStates %d", r, ch.NumStates)
		}
		seen[r] = true
	}
	if len(seen) != int(ch.NumStates) {
		t.Errorf("ranks are not a permutation: saw %d unique values, want %d", len(seen), ch.NumStates)
	}
}

func TestCHCorrectnessAllPairs(t *testing.T) {
	c, g := buildTestGrid(t)
	ch := contractGraph(c, g)

	for s := uint32(0); s < g.NumStates; s++ {
		for d := uint32(0); d < g.NumStates; d++ {
			if s == d {
				continue
			}
			want := plainDijkstra(g, s, d)
			got := chBidirectionalDijkstra(ch, s, d)
			if got != want {
				t.Errorf("s=%d d=%d: CH=%d, Dijkstra=%d", s, d, got, want)
			}
		}
	}
}

func TestContractEmptyGraph(t *testing.T) {
	g := &hybrid.Graph{}
	order := &ordering.EBGOrdering{}
	ch := Contract(g, order, DefaultOptions())
	if ch.NumStates != 0 {
		t.Errorf("NumStates = %d, want 0", ch.NumStates)
	}
}

func TestContractLinearChain(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 2, ToNodeID: 1, WayID: 1, Weight: 100, LengthMM: 1000, HighwayClass: 3},
			{FromNodeID: 2, ToNodeID: 3, WayID: 2, Weight: 200, LengthMM: 2000, HighwayClass: 3},
			{FromNodeID: 3, ToNodeID: 2, WayID: 2, Weight: 200, LengthMM: 2000, HighwayClass: 3},
			{FromNodeID: 3, ToNodeID: 4, WayID: 3, Weight: 300, LengthMM: 3000, HighwayClass: 3},
			{FromNodeID: 4, ToNodeID: 3, WayID: 3, Weight: 300, LengthMM: 3000, HighwayClass: 3},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.1, 3: 1.2, 4: 1.3},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.1, 3: 103.2, 4: 103.3},
	}
	c := nbg.Build(result)
	g := hybrid.Build(c, nil, profile.ModeCar.Mask())
	ch := contractGraph(c, g)

	var first, last uint32
	for i, id := range c.OsmNodeID {
		if id == 1 {
			first = uint32(i)
		}
		if id == 4 {
			last = uint32(i)
		}
	}
	got := chBidirectionalDijkstra(ch, first, last)
	want := plainDijkstra(g, first, last)
	if got != want {
		t.Errorf("chain ends: CH=%d, Dijkstra=%d", got, want)
	}
}
