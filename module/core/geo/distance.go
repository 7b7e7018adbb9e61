// Package geo holds the pure geometry used by tracking: great-circle distance,
// bearing, containment tests, Douglas-Peucker simplification and polyline encoding.
//
// Polygons are evaluated in planar lat/lng space, so a polygon crossing the
// antimeridian is not handled.
package geo

import (
	"math"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

const EarthRadiusMeters = 6371000

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b domain.Coord) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	h := sLat*sLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sLon*sLon
	// rounding can push h just outside [0, 1] near antipodes
	h = math.Min(1, math.Max(0, h))
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDegrees returns the initial bearing from a to b in [0, 360).
func BearingDegrees(a, b domain.Coord) float64 {
	phi1 := toRad(a.Lat)
	phi2 := toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)
	deg := math.Mod(toDeg(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// IsInsideCircle reports whether p lies within radius of center. The boundary counts as inside.
func IsInsideCircle(p, center domain.Coord, radiusMeters float64) bool {
	return DistanceMeters(p, center) <= radiusMeters
}

// IsInsidePolygon applies the even-odd rule over the implicitly closed ring.
// Fewer than three vertices is never inside.
func IsInsidePolygon(p domain.Coord, ring []domain.Coord) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, yj := ring[i].Lat, ring[j].Lat
		xi, xj := ring[i].Lon, ring[j].Lon
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lon < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// SpeedKmh derives a speed from two fixes. Zero or negative elapsed time yields 0.
func SpeedKmh(distanceMeters, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return distanceMeters / elapsedSeconds * 3.6
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
