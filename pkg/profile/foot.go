package profile

import "github.com/paulmach/osm"

// footHighways and footSpeedKMH mirror the original_source reference
// FootProfile's highway-class/speed table (footway=5km/h class12,
// path/cycleway=4.5km/h class20, ...), adapted to the WayClassification
// shape this package shares across modes.
var footHighways = map[string]bool{
	"footway": true, "path": true, "pedestrian": true, "living_street": true,
	"residential": true, "service": true, "track": true, "steps": true,
	"cycleway": true, "unclassified": true, "tertiary": true,
}

var footSpeedKMH = map[string]float64{
	"footway": 5, "path": 4.5, "pedestrian": 4.8, "living_street": 4.8,
	"residential": 4.8, "service": 4.8, "track": 4.2, "steps": 1.5,
	"cycleway": 4.5, "unclassified": 4.8, "tertiary": 4.8,
}

const (
	footClassFootway = 12
	footClassGeneric = 20
)

// Foot is the pedestrian travel profile.
type Foot struct{}

func (Foot) Mode() Mode { return ModeFoot }

func (Foot) ProcessWay(tags osm.Tags) WayClassification {
	hw := tags.Find("highway")
	if !footHighways[hw] {
		return WayClassification{}
	}
	if tags.Find("foot") == "no" {
		return WayClassification{}
	}
	access := tags.Find("access")
	if (access == "no" || access == "private") && tags.Find("foot") == "" {
		return WayClassification{}
	}

	speed := footSpeedKMH[hw]
	if speed == 0 {
		speed = 4.5
	}

	class := uint8(footClassGeneric)
	if hw == "footway" {
		class = footClassFootway
	}

	// Pedestrian ways are undirected unless explicitly marked, matching the
	// reference profile's treatment of oneway:foot as the only directional
	// signal pedestrians respect.
	forward, backward := true, true
	switch tags.Find("oneway:foot") {
	case "yes":
		backward = false
	case "-1":
		forward = false
	}

	return WayClassification{
		Routable:      true,
		Forward:       forward,
		Backward:      backward,
		SpeedMMPerSec: kmhToMMPS(speed, 2800),
		HighwayClass:  class,
	}
}

func (Foot) ProcessTurn(tags osm.Tags) TurnClassification {
	restriction := tags.Find("restriction")
	specific := tags.Find("restriction:foot")
	val := restriction
	if specific != "" {
		val = specific
	}
	// Pedestrians generally ignore vehicle turn restrictions unless a
	// restriction:foot tag explicitly targets them.
	if specific == "" {
		return TurnClassification{}
	}
	kind := restrictionKind(val)
	if kind == TurnNone {
		return TurnClassification{}
	}
	if hasRestrictionException(tags, "foot") {
		return TurnClassification{}
	}
	return TurnClassification{Applies: true, Kind: kind}
}
