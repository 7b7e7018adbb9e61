package geo

import (
	"errors"
	"math"
	"strings"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

const polylinePrecision = 1e5

var ErrMalformedPolyline = errors.New("malformed polyline")

// EncodePolyline encodes coordinates with the standard polyline algorithm at 5 decimals.
func EncodePolyline(coords []domain.Coord) string {
	var sb strings.Builder
	var prevLat, prevLon int64
	for _, c := range coords {
		lat := int64(math.Round(c.Lat * polylinePrecision))
		lon := int64(math.Round(c.Lon * polylinePrecision))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

// DecodePolyline reverses EncodePolyline.
func DecodePolyline(s string) ([]domain.Coord, error) {
	var coords []domain.Coord
	var lat, lon int64
	for i := 0; i < len(s); {
		dLat, n, err := decodeValue(s[i:])
		if err != nil {
			return nil, err
		}
		i += n
		dLon, n, err := decodeValue(s[i:])
		if err != nil {
			return nil, err
		}
		i += n
		lat += dLat
		lon += dLon
		coords = append(coords, domain.Coord{
			Lat: float64(lat) / polylinePrecision,
			Lon: float64(lon) / polylinePrecision,
		})
	}
	return coords, nil
}

func encodeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

func decodeValue(s string) (int64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int(s[i]) - 63
		if b < 0 || b > 0x3f || shift > 60 {
			return 0, 0, ErrMalformedPolyline
		}
		result |= uint64(b&0x1f) << shift
		shift += 5
		if b < 0x20 {
			v := int64(result >> 1)
			if result&1 != 0 {
				v = ^v
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrMalformedPolyline
}
