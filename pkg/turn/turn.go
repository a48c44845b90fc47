// Package turn implements Stage 4: compiling raw OSM restriction relations
// (surfaced as osmparser.Restriction by pkg/osm) plus the active profile's
// ProcessTurn classification into resolved Rules indexed against the NBG's
// edge_idx space. Unresolvable rules (a missing member, a from/to way that
// does not actually touch the via node) are dropped and reported as
// rerr.UnresolvedRule entries rather than failing the whole compile, mirroring the
// teacher's tolerance for partially-broken OSM input elsewhere in the
// pipeline (pkg/osm/parser.go silently skips ways it cannot classify).
package turn

import (
	"sort"

	"github.com/paulmach/osm"

	"github.com/nbgroute/nbgroute/pkg/nbg"
	osmparser "github.com/nbgroute/nbgroute/pkg/osm"
	"github.com/nbgroute/nbgroute/pkg/profile"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

// Kind distinguishes a banning rule from a must-take rule.
type Kind uint8

const (
	Ban Kind = iota
	Only
)

// Rule is a single resolved turn restriction: taking the edge at FromEdgeIdx
// into ViaNode and then the edge at ToEdgeIdx is banned/mandated for modes
// in ModeMask.
type Rule struct {
	FromEdgeIdx uint64
	ViaNode     uint32
	ToEdgeIdx   uint64
	Kind        Kind
	ModeMask    uint8
}

// Compile resolves every restriction relation against the NBG's edge index,
// returning rules sorted by ViaNode (for binary search during hybrid
// construction) plus the relation ids that could not be resolved.
func Compile(c *nbg.CSR, restrictions []osmparser.Restriction, prof profile.Profile) ([]Rule, []rerr.UnresolvedRule) {
	wayEndpoints := indexWayEndpoints(c)

	var rules []Rule
	var unresolved []rerr.UnresolvedRule

	for _, rel := range restrictions {
		tc := prof.ProcessTurn(rel.Tags)
		if !tc.Applies {
			continue
		}
		kind := Ban
		if tc.Kind == profile.TurnOnly {
			kind = Only
		}

		fromWay, toWay, viaNodeOSM, viaIsNode, ok := splitMembers(rel.Members)
		if !ok {
			unresolved = append(unresolved, rerr.UnresolvedRule{RelationID: rel.RelationID, Reason: "missing from/via/to member"})
			continue
		}
		if !viaIsNode {
			// via-way (multi-way) restrictions are out of scope; only
			// simple via-node restrictions are compiled.
			unresolved = append(unresolved, rerr.UnresolvedRule{RelationID: rel.RelationID, Reason: "via-way restrictions unsupported"})
			continue
		}

		viaNode, ok := wayEndpoints.nodeID(viaNodeOSM)
		if !ok {
			unresolved = append(unresolved, rerr.UnresolvedRule{RelationID: rel.RelationID, Reason: "via node not present in NBG"})
			continue
		}

		fromEdge, ok := wayEndpoints.edgeTerminatingAt(fromWay, viaNode)
		if !ok {
			unresolved = append(unresolved, rerr.UnresolvedRule{RelationID: rel.RelationID, Reason: "from way not adjacent to via node"})
			continue
		}
		toEdge, ok := wayEndpoints.edgeStartingAt(toWay, viaNode)
		if !ok {
			unresolved = append(unresolved, rerr.UnresolvedRule{RelationID: rel.RelationID, Reason: "to way not adjacent to via node"})
			continue
		}

		rules = append(rules, Rule{
			FromEdgeIdx: fromEdge,
			ViaNode:     viaNode,
			ToEdgeIdx:   toEdge,
			Kind:        kind,
			ModeMask:    prof.Mode().Mask(),
		})
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].ViaNode != rules[j].ViaNode {
			return rules[i].ViaNode < rules[j].ViaNode
		}
		if rules[i].FromEdgeIdx != rules[j].FromEdgeIdx {
			return rules[i].FromEdgeIdx < rules[j].FromEdgeIdx
		}
		return rules[i].ToEdgeIdx < rules[j].ToEdgeIdx
	})

	return rules, unresolved
}

func splitMembers(members []osmparser.RestrictionMember) (fromWay, toWay osm.WayID, viaNode osm.NodeID, viaIsNode bool, ok bool) {
	var haveFrom, haveTo, haveVia bool
	for _, m := range members {
		switch m.Role {
		case "from":
			if m.IsWay {
				fromWay, haveFrom = m.WayID, true
			}
		case "to":
			if m.IsWay {
				toWay, haveTo = m.WayID, true
			}
		case "via":
			if !m.IsWay {
				viaNode, haveVia, viaIsNode = m.NodeID, true, true
			} else {
				haveVia, viaIsNode = true, false
			}
		}
	}
	return fromWay, toWay, viaNode, viaIsNode, haveFrom && haveTo && haveVia
}
