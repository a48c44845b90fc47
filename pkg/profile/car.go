package profile

import (
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

// carHighways lists highway tag values accessible by car, carried over
// verbatim from the teacher's isCarAccessible table.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// carSpeedKMH is a per-class default speed table, used when no explicit
// maxspeed tag is present.
var carSpeedKMH = map[string]float64{
	"motorway":       100,
	"motorway_link":  60,
	"trunk":          80,
	"trunk_link":     50,
	"primary":        65,
	"primary_link":   40,
	"secondary":      55,
	"secondary_link": 35,
	"tertiary":       45,
	"tertiary_link":  30,
	"unclassified":   40,
	"residential":    30,
	"living_street":  15,
	"service":        15,
}

var carClassBucket = map[string]uint8{
	"motorway": 1, "motorway_link": 2,
	"trunk": 3, "trunk_link": 4,
	"primary": 5, "primary_link": 6,
	"secondary": 7, "secondary_link": 8,
	"tertiary": 9, "tertiary_link": 10,
	"unclassified": 11, "residential": 12,
	"living_street": 13, "service": 14,
}

// Car is the motor-vehicle travel profile.
type Car struct{}

func (Car) Mode() Mode { return ModeCar }

func (Car) ProcessWay(tags osm.Tags) WayClassification {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return WayClassification{}
	}
	if tags.Find("area") == "yes" {
		return WayClassification{}
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return WayClassification{}
	}
	if tags.Find("motor_vehicle") == "no" {
		return WayClassification{}
	}

	fwd, bwd := carDirectionFlags(tags, hw)
	if !fwd && !bwd {
		return WayClassification{}
	}

	speed := carSpeedKMH[hw]
	if speed == 0 {
		speed = 30
	}
	if ms := tags.Find("maxspeed"); ms != "" {
		if v, ok := parseMaxspeed(ms); ok {
			speed = v
		}
	}

	return WayClassification{
		Routable:      true,
		Forward:       fwd,
		Backward:      bwd,
		SpeedMMPerSec: kmhToMMPS(speed, 0),
		HighwayClass:  carClassBucket[hw],
	}
}

func (Car) ProcessTurn(tags osm.Tags) TurnClassification {
	restriction := tags.Find("restriction")
	specific := tags.Find("restriction:motor_vehicle")
	if specific == "" {
		specific = tags.Find("restriction:conditional")
	}
	val := restriction
	if specific != "" {
		val = specific
	}
	kind := restrictionKind(val)
	if kind == TurnNone {
		return TurnClassification{}
	}
	if hasRestrictionException(tags, "motor_vehicle") || hasRestrictionException(tags, "motorcar") {
		return TurnClassification{}
	}
	return TurnClassification{Applies: true, Kind: kind}
}

func carDirectionFlags(tags osm.Tags, hw string) (forward, backward bool) {
	forward, backward = true, true

	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		forward, backward = false, false
	}

	return forward, backward
}

// parseMaxspeed parses a maxspeed tag value into km/h, supporting the plain
// numeric form and the "<n> mph" form. Returns ok=false for non-numeric
// values like "none" or "walk".
func parseMaxspeed(s string) (float64, bool) {
	mph := strings.HasSuffix(s, " mph")
	if mph {
		s = strings.TrimSuffix(s, " mph")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if mph {
		v *= 1.60934
	}
	return v, true
}
