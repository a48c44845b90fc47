// Package profile implements the travel-mode capability interface: a way to
// classify OSM way tags into access/speed/class, and turn tags into
// ban/mandatory turn rules. Car/Bike/Foot implementations are grounded on
// the teacher's isCarAccessible/directionFlags (pkg/osm/parser.go) and the
// original Rust foot.rs profile's highway-class/speed table and class
// bitset, generalized into one shared interface so pkg/osm and pkg/nbg can
// be built once and reused across modes.
package profile

import "github.com/paulmach/osm"

// Mode is a bitmask over travel modes, matching a turn rule's mode_mask.
type Mode uint8

const (
	ModeCar Mode = 1 << iota
	ModeBike
	ModeFoot
)

// Mask returns the single-bit mask for this profile's own mode, for turn
// rule matching.
func (m Mode) Mask() uint8 { return uint8(m) }

// TurnKind is the disposition of a turn rule.
type TurnKind uint8

const (
	TurnNone TurnKind = iota
	TurnBan
	TurnOnly
)

// WayClassification is the per-way decision a profile makes during NBG
// build: whether it is routable, its direction flags, speed, and class.
type WayClassification struct {
	Routable       bool
	Forward        bool
	Backward       bool
	SpeedMMPerSec  uint32 // speed in millimeters/second, capped per mode
	HighwayClass   uint8  // coarse class bucket, used for priority heuristics
}

// TurnClassification is the per-turn-relation decision a profile makes
// during turn compilation: whether the relation applies to this mode, and
// if so what kind of rule it creates.
type TurnClassification struct {
	Applies bool
	Kind    TurnKind
}

// Profile is the capability interface selected once at build time and fixed
// for the lifetime of a compiled artifact (spec §9).
type Profile interface {
	// Mode identifies which bit this profile occupies in a turn rule's
	// mode_mask.
	Mode() Mode
	// ProcessWay classifies a way's tags into routability/direction/speed.
	ProcessWay(tags osm.Tags) WayClassification
	// ProcessTurn classifies a restriction relation's tags (restriction,
	// restriction:<mode>, except) for this mode.
	ProcessTurn(tags osm.Tags) TurnClassification
}

// kmhToMMPS converts km/h to millimeters/second, capping the result at cap
// mm/s when cap is non-zero. Foot passes 2800 mm/s (~10 km/h), the way the
// reference foot profile does; Car and Bike pass 0 and are not capped.
func kmhToMMPS(kmh float64, cap uint32) uint32 {
	v := uint32(kmh * 1000.0 / 3.6)
	if v == 0 {
		v = 1
	}
	if cap > 0 && v > cap {
		return cap
	}
	return v
}

func hasRestrictionException(tags osm.Tags, mode string) bool {
	except := tags.Find("except")
	if except == "" {
		return false
	}
	// except is a ;-separated list of modes this restriction does not apply to.
	for _, part := range splitSemicolon(except) {
		if part == mode {
			return true
		}
	}
	return false
}

func splitSemicolon(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			out = append(out, trimSpace(s[start:i]))
			start = i + 1
		}
	}
	out = append(out, trimSpace(s[start:]))
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

// restrictionKind maps a restriction relation's "restriction" tag value to
// a TurnKind: no_* bans, only_* marks the sole permitted turn.
func restrictionKind(value string) TurnKind {
	if len(value) >= 3 && value[:3] == "no_" {
		return TurnBan
	}
	if len(value) >= 5 && value[:5] == "only_" {
		return TurnOnly
	}
	return TurnNone
}
