package turn

import "sort"

// Table is the compiled, queryable form of a sorted []Rule: binary search on
// ViaNode, then linear scan within the (typically tiny) per-node slice.
type Table struct {
	rules []Rule
	// byVia[k] is the slice of rules bucketed by ViaNode, aligned with
	// viaNodes (parallel sorted-unique arrays for O(log n) lookup).
	viaNodes []uint32
	byVia    [][]Rule
}

// NewTable builds a Table from rules already sorted by ViaNode (Compile's
// output satisfies this).
func NewTable(rules []Rule) *Table {
	t := &Table{rules: rules}
	i := 0
	for i < len(rules) {
		j := i
		v := rules[i].ViaNode
		for j < len(rules) && rules[j].ViaNode == v {
			j++
		}
		t.viaNodes = append(t.viaNodes, v)
		t.byVia = append(t.byVia, rules[i:j])
		i = j
	}
	return t
}

// Allowed reports whether the turn fromEdge -> viaNode -> toEdge is
// permitted under modeMask, applying the no_*-wins-over-only_* tie-break and
// the implicit ban every only_* rule places on unlisted outgoing edges.
func (t *Table) Allowed(fromEdge uint64, viaNode uint32, toEdge uint64, modeMask uint8) bool {
	idx := sort.Search(len(t.viaNodes), func(i int) bool { return t.viaNodes[i] >= viaNode })
	if idx >= len(t.viaNodes) || t.viaNodes[idx] != viaNode {
		return true
	}
	rules := t.byVia[idx]

	sawOnlyForFrom := false
	onlyAllows := false
	for _, r := range rules {
		if r.ModeMask&modeMask == 0 || r.FromEdgeIdx != fromEdge {
			continue
		}
		if r.Kind == Only {
			sawOnlyForFrom = true
			if r.ToEdgeIdx == toEdge {
				onlyAllows = true
			}
		}
	}
	if sawOnlyForFrom && !onlyAllows {
		return false
	}

	for _, r := range rules {
		if r.Kind == Ban && r.ModeMask&modeMask != 0 && r.FromEdgeIdx == fromEdge && r.ToEdgeIdx == toEdge {
			return false
		}
	}
	return true
}

// HasRestriction reports whether viaNode participates in any rule at all —
// used by pkg/hybrid to classify a node as a complex junction.
func (t *Table) HasRestriction(viaNode uint32) bool {
	idx := sort.Search(len(t.viaNodes), func(i int) bool { return t.viaNodes[i] >= viaNode })
	return idx < len(t.viaNodes) && t.viaNodes[idx] == viaNode
}
