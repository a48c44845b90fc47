package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/nbgroute/nbgroute/pkg/ch"
	"github.com/nbgroute/nbgroute/pkg/hybrid"
	"github.com/nbgroute/nbgroute/pkg/nbg"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

// ErrNoRoute is returned when no path exists between the two snapped
// points under the active travel mode's turn and access rules.
var ErrNoRoute = rerr.ErrNoRoute

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64
	Lon float64
}

// Segment is one leg of a RouteResult. The runtime only ever returns a
// single segment today; Segments is plural to leave room for the
// alternative-route/via-point features the ambient HTTP surface may add
// later without changing this shape.
type Segment struct {
	DistanceMeters float64
	Geometry       []LatLng
}

// RouteResult is the output of a 1-to-1 query.
type RouteResult struct {
	TotalDistanceMillis uint32
	Segments            []Segment
}

// Engine answers 1-to-1 shortest-path queries against a contracted hybrid
// state graph, adapted from the teacher's pkg/routing.Engine: same
// bidirectional-meet-in-the-middle shape, generalized from plain NBG
// node ids to hybrid states and from a touched-list QueryState to the
// generation-stamped ScratchState pooled below.
type Engine struct {
	chg     *ch.Graph
	hg      *hybrid.Graph
	c       *nbg.CSR
	snapper *Snapper
	pool    sync.Pool
}

// NewEngine builds a query engine from the contracted overlay, the hybrid
// state graph it was contracted from, and the underlying NBG (for
// geometry and nearest-road snapping).
func NewEngine(chg *ch.Graph, hg *hybrid.Graph, c *nbg.CSR) *Engine {
	e := &Engine{chg: chg, hg: hg, c: c, snapper: NewSnapper(c)}
	e.pool.New = func() any { return newScratchState(chg.NumStates) }
	return e
}

// Route computes the shortest path between two geographic points.
func (e *Engine) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	startSnap, err := e.snapper.Snap(start.Lat, start.Lon)
	if err != nil {
		return nil, err
	}
	endSnap, err := e.snapper.Snap(end.Lat, end.Lon)
	if err != nil {
		return nil, err
	}

	ss := e.pool.Get().(*ScratchState)
	defer e.pool.Put(ss)
	ss.begin()

	e.seedForward(ss, startSnap)
	e.seedBackward(ss, endSnap)

	mu, meet := e.runBidirectional(ctx, ss)
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", rerr.ErrDeadlineExceeded, err)
		}
		return nil, fmt.Errorf("%w: %w", rerr.ErrCancelled, err)
	}
	if meet == noState || mu == infDist {
		return nil, ErrNoRoute
	}

	statePath := e.reconstructStatePath(ss, meet)
	fullPath := e.unpackStatePath(statePath)
	geometry, distMeters := e.buildGeometry(fullPath)

	return &RouteResult{
		TotalDistanceMillis: mu,
		Segments: []Segment{
			{DistanceMeters: distMeters, Geometry: geometry},
		},
	}, nil
}

// SnapToState resolves a geographic point to one representative hybrid
// state. Many-to-many queries (§4.7.2) operate over whole states rather
// than the fractional edge-position seeding Route uses for its snap
// points, so a single arrival state at the nearer endpoint is close enough
// for an ambient HTTP matrix endpoint — callers needing Route's precision
// should use Route directly.
func (e *Engine) SnapToState(ll LatLng) (uint32, error) {
	snap, err := e.snapper.Snap(ll.Lat, ll.Lon)
	if err != nil {
		return 0, err
	}
	return stateForArrival(e.hg, snap.NodeV, snap.EdgeIdx), nil
}

// stateForArrival returns the state at node representing arrival via
// edgeIdx: the node's sole state if node is a simple junction, or the
// matching edge-state if node is complex. Both directions of one logical
// edge share edgeIdx (pkg/hybrid sorts each complex node's states by
// ascending incoming edge_idx), so this works for either endpoint.
func stateForArrival(g *hybrid.Graph, node uint32, edgeIdx uint64) uint32 {
	first, n := g.NodeFirstState[node], g.NodeNumStates[node]
	for i := uint32(0); i < n; i++ {
		s := first + i
		if !g.IsEdgeState(s) {
			return s
		}
		if uint64(g.StateIncomingEdge[s]) == edgeIdx {
			return s
		}
	}
	return first
}

// halfEdgeWeight returns the travel-time weight of the from->to half-edge,
// or (0, false) if that direction is not traversable (e.g. a oneway
// street's reverse).
func halfEdgeWeight(c *nbg.CSR, from, to uint32) (uint32, bool) {
	start, end := c.EdgesFrom(from)
	for e := start; e < end; e++ {
		if c.Heads[e] == to {
			if c.Weight[e] == nbg.InfWeight {
				return 0, false
			}
			return c.Weight[e], true
		}
	}
	return 0, false
}

// seedForward seeds the forward search from the two directions a query
// could head off from the start snap point: toward NodeV (continuing the
// edge's natural direction) and toward NodeU (the reverse), each only if
// that direction is actually traversable.
func (e *Engine) seedForward(ss *ScratchState, snap SnapResult) {
	u, v := snap.NodeU, snap.NodeV
	if w, ok := halfEdgeWeight(e.c, u, v); ok {
		remaining := uint32(math.Round(float64(w) * (1 - snap.Ratio)))
		s := stateForArrival(e.hg, v, snap.EdgeIdx)
		if remaining < ss.distF(s) {
			ss.setFwd(s, remaining, noState)
			ss.fwdPQ.Push(s, remaining)
		}
	}
	if w, ok := halfEdgeWeight(e.c, v, u); ok {
		remaining := uint32(math.Round(float64(w) * snap.Ratio))
		s := stateForArrival(e.hg, u, snap.EdgeIdx)
		if remaining < ss.distF(s) {
			ss.setFwd(s, remaining, noState)
			ss.fwdPQ.Push(s, remaining)
		}
	}
}

// seedBackward seeds the backward search from every state at the end
// snap's two endpoint nodes: reaching any state at a node, regardless of
// which edge it arrived via, is enough to then coast the remaining
// straight-line distance along the snapped edge to the destination point.
func (e *Engine) seedBackward(ss *ScratchState, snap SnapResult) {
	seedNode := func(node uint32, dist uint32) {
		first, n := e.hg.NodeFirstState[node], e.hg.NodeNumStates[node]
		for i := uint32(0); i < n; i++ {
			s := first + i
			if dist < ss.distB(s) {
				ss.setBwd(s, dist, noState)
				ss.bwdPQ.Push(s, dist)
			}
		}
	}
	u, v := snap.NodeU, snap.NodeV
	if w, ok := halfEdgeWeight(e.c, u, v); ok {
		seedNode(u, uint32(math.Round(float64(w)*snap.Ratio)))
	}
	if w, ok := halfEdgeWeight(e.c, v, u); ok {
		seedNode(v, uint32(math.Round(float64(w)*(1-snap.Ratio))))
	}
}

// runBidirectional runs the meet-in-the-middle search over the CH
// overlay's up arcs, applying stall-on-demand pruning (§4.7.3) when
// enabled: before relaxing arc (v,w), if an already-settled higher-rank
// neighbor already reaches v more cheaply than v's own settled distance,
// v is "stalled" and its own relaxations are skipped, since a shorter path
// through that neighbor must already be in flight.
func (e *Engine) runBidirectional(ctx context.Context, ss *ScratchState) (uint32, uint32) {
	mu := infDist
	meet := noState
	iterations := uint32(0)

	for ss.fwdPQ.Len() > 0 || ss.bwdPQ.Len() > 0 {
		fwdMin := ss.fwdPQ.PeekDist()
		bwdMin := ss.bwdPQ.PeekDist()
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		iterations++
		if iterations&255 == 0 && ctx.Err() != nil {
			return mu, meet
		}

		if fwdMin < mu {
			item := ss.fwdPQ.Pop()
			u := item.Node
			if item.Dist <= ss.distF(u) {
				if db := ss.distB(u); db < infDist {
					if cand := item.Dist + db; cand < mu {
						mu = cand
						meet = u
					}
				}
				if !(ss.StallOnDemand && e.stalledForward(ss, u, item.Dist)) {
					start, end := e.chg.ArcsFrom(u)
					for a := start; a < end; a++ {
						v := e.chg.FwdTargets[a]
						nd := item.Dist + e.chg.FwdWeight[a]
						if nd < ss.distF(v) {
							ss.setFwd(v, nd, u)
							ss.fwdPQ.Push(v, nd)
						}
					}
				}
			}
		}

		if ss.bwdPQ.PeekDist() < mu {
			item := ss.bwdPQ.Pop()
			u := item.Node
			if item.Dist <= ss.distB(u) {
				if df := ss.distF(u); df < infDist {
					if cand := df + item.Dist; cand < mu {
						mu = cand
						meet = u
					}
				}
				if !(ss.StallOnDemand && e.stalledBackward(ss, u, item.Dist)) {
					start, end := e.chg.ArcsFromBwd(u)
					for a := start; a < end; a++ {
						v := e.chg.BwdTargets[a]
						nd := item.Dist + e.chg.BwdWeight[a]
						if nd < ss.distB(v) {
							ss.setBwd(v, nd, u)
							ss.bwdPQ.Push(v, nd)
						}
					}
				}
			}
		}
	}

	return mu, meet
}

// stalledForward/stalledBackward implement the stall check: scan u's
// incoming-from-higher-rank arcs (the backward/forward overlay in the
// opposite direction, since an arc x->u with rank[x]>rank[u] in the
// upward sense is exactly an arc the *other* search direction would have
// stored as an upward arc from u to x). If some such x already has a
// strictly shorter settled distance that would reach u via a cheaper arc
// than u's own label, u is stalled.
func (e *Engine) stalledForward(ss *ScratchState, u uint32, duDist uint32) bool {
	start, end := e.chg.ArcsFromBwd(u)
	for a := start; a < end; a++ {
		x := e.chg.BwdTargets[a]
		w := e.chg.BwdWeight[a]
		if dx := ss.distF(x); dx < infDist && dx+w < duDist {
			return true
		}
	}
	return false
}

func (e *Engine) stalledBackward(ss *ScratchState, u uint32, duDist uint32) bool {
	start, end := e.chg.ArcsFrom(u)
	for a := start; a < end; a++ {
		x := e.chg.FwdTargets[a]
		w := e.chg.FwdWeight[a]
		if dx := ss.distB(x); dx < infDist && dx+w < duDist {
			return true
		}
	}
	return false
}

// reconstructStatePath walks predFwd from meet back to the forward seed,
// reverses it, then appends predBwd from meet forward to the backward
// seed — predBwd already runs in true travel order (§"problem solving"
// derivation: predBwd[v]=u means the original arc v->u exists), so no
// second reversal is needed for that half.
func (e *Engine) reconstructStatePath(ss *ScratchState, meet uint32) []uint32 {
	var path []uint32
	node := meet
	for {
		path = append(path, node)
		pred := ss.predF(node)
		if pred == noState {
			break
		}
		node = pred
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	node = meet
	for {
		pred := ss.predB(node)
		if pred == noState {
			break
		}
		path = append(path, pred)
		node = pred
	}
	return path
}
