// Package geo provides the planar/great-circle distance math shared by the
// NBG builder (edge weights), the hybrid/turn compilers (geometry lookups),
// and the query runtime's nearest-neighbor snap.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// EquirectangularDist returns an approximate distance in meters. Faster than
// Haversine; use for candidate filtering and comparisons, not final weights.
func EquirectangularDist(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Cos((lat1+lat2)/2*math.Pi/180) * math.Pi / 180
	y := (lat2 - lat1) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// PointToSegmentDist computes the perpendicular distance from point P to
// segment AB, and the projection ratio along AB (clamped to [0,1]). dist is
// in meters, ratio is in [0,1].
func PointToSegmentDist(pLat, pLon, aLat, aLon, bLat, bLon float64) (dist float64, ratio float64) {
	cosLat := math.Cos((aLat + bLat) / 2 * math.Pi / 180)

	ax := aLon * cosLat
	ay := aLat
	bx := bLon * cosLat
	by := bLat
	px := pLon * cosLat
	py := pLat

	if aLat == bLat && aLon == bLon {
		return Haversine(pLat, pLon, aLat, aLon), 0
	}

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Haversine(pLat, pLon, aLat, aLon), 0
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closeLat := aLat + t*(bLat-aLat)
	closeLon := aLon + t*(bLon-aLon)

	return Haversine(pLat, pLon, closeLat, closeLon), t
}

// Point builds an orb.Point in orb's (lon, lat) convention from a (lat, lon)
// pair, so edge envelopes can be indexed by pkg/query's rtree.
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// Bound returns the bounding box of a line segment in orb's convention, for
// insertion into an rtree.
func Bound(aLat, aLon, bLat, bLon float64) orb.Bound {
	return orb.Bound{Min: Point(math.Min(aLat, bLat), math.Min(aLon, bLon)), Max: Point(math.Max(aLat, bLat), math.Max(aLon, bLon))}
}
