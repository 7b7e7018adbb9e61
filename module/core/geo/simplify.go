package geo

import (
	"math"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

// DefaultTolerance is the simplification tolerance in degrees (about a meter).
const DefaultTolerance = 0.00001

// Simplify reduces points with Douglas-Peucker. Tolerance is in degrees and
// distances are measured in planar lat/lng space against the kept segment.
// The result is a subsequence of points that always keeps the first and last.
func Simplify[T any](points []T, tolerance float64, coord func(T) domain.Coord) []T {
	if len(points) <= 2 {
		return append([]T(nil), points...)
	}

	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true

	type span struct{ first, last int }
	stack := []span{{0, len(points) - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.last-s.first < 2 {
			continue
		}

		a, b := coord(points[s.first]), coord(points[s.last])
		maxDist, index := -1.0, -1
		for i := s.first + 1; i < s.last; i++ {
			d := segmentDistance(coord(points[i]), a, b)
			if d > maxDist {
				maxDist, index = d, i
			}
		}
		if maxDist > tolerance {
			keep[index] = true
			stack = append(stack, span{s.first, index}, span{index, s.last})
		}
	}

	out := make([]T, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

// SimplifyCoords is Simplify over plain coordinates.
func SimplifyCoords(coords []domain.Coord, tolerance float64) []domain.Coord {
	return Simplify(coords, tolerance, func(c domain.Coord) domain.Coord { return c })
}

// segmentDistance is the planar distance from p to segment ab, in degrees.
func segmentDistance(p, a, b domain.Coord) float64 {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lon-a.Lon, p.Lat-a.Lat)
	}
	t := ((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.Lon-(a.Lon+t*dx), p.Lat-(a.Lat+t*dy))
}
