package profile

import "github.com/paulmach/osm"

var bikeHighways = map[string]bool{
	"cycleway": true, "primary": true, "primary_link": true,
	"secondary": true, "secondary_link": true, "tertiary": true,
	"tertiary_link": true, "unclassified": true, "residential": true,
	"living_street": true, "service": true, "track": true,
	"path": true, "footway": true,
}

var bikeSpeedKMH = map[string]float64{
	"cycleway": 18, "primary": 16, "primary_link": 14,
	"secondary": 16, "secondary_link": 14, "tertiary": 16,
	"tertiary_link": 14, "unclassified": 15, "residential": 15,
	"living_street": 12, "service": 10, "track": 12,
	"path": 12, "footway": 8,
}

var bikeClassBucket = map[string]uint8{
	"cycleway": 20, "primary": 5, "primary_link": 6,
	"secondary": 7, "secondary_link": 8, "tertiary": 9,
	"tertiary_link": 10, "unclassified": 11, "residential": 12,
	"living_street": 13, "service": 14, "track": 21,
	"path": 22, "footway": 23,
}

// Bike is the bicycle travel profile, grounded on the same table-driven
// approach as Car but with its own highway allowlist/speed table per the
// reference foot.rs profile's per-mode table pattern.
type Bike struct{}

func (Bike) Mode() Mode { return ModeBike }

func (Bike) ProcessWay(tags osm.Tags) WayClassification {
	hw := tags.Find("highway")
	if !bikeHighways[hw] {
		return WayClassification{}
	}
	if tags.Find("bicycle") == "no" {
		return WayClassification{}
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		if tags.Find("bicycle") == "" {
			return WayClassification{}
		}
	}

	forward, backward := true, true
	switch tags.Find("oneway:bicycle") {
	case "yes":
		backward = false
	case "-1":
		forward = false
	case "no":
		forward, backward = true, true
	}
	if tags.Find("oneway:bicycle") == "" {
		switch tags.Find("oneway") {
		case "yes", "true", "1":
			if tags.Find("cycleway") != "opposite" && tags.Find("cycleway:left") == "" {
				backward = false
			}
		case "-1", "reverse":
			forward = false
		}
	}

	speed := bikeSpeedKMH[hw]
	if speed == 0 {
		speed = 14
	}

	return WayClassification{
		Routable:      true,
		Forward:       forward,
		Backward:      backward,
		SpeedMMPerSec: kmhToMMPS(speed, 0),
		HighwayClass:  bikeClassBucket[hw],
	}
}

func (Bike) ProcessTurn(tags osm.Tags) TurnClassification {
	restriction := tags.Find("restriction")
	specific := tags.Find("restriction:bicycle")
	val := restriction
	if specific != "" {
		val = specific
	}
	kind := restrictionKind(val)
	if kind == TurnNone {
		return TurnClassification{}
	}
	if hasRestrictionException(tags, "bicycle") {
		return TurnClassification{}
	}
	return TurnClassification{Applies: true, Kind: kind}
}
