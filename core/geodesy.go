package core

import (
	"math"

	"github.com/signalsfoundry/skywatch/model"
)

// Great-circle helpers on the spherical Earth model. All distances are
// kilometres, all angles degrees unless noted. The same EarthRadiusKm
// constant is shared with the ECEF geometry layer so ground distances
// and slant ranges stay consistent.

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// NormalizeAzimuth wraps an angle to [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// normalizeLongitude wraps a longitude to [-180, 180].
func normalizeLongitude(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

// Distance returns the great-circle distance between two points via the
// haversine formula. Symmetric; 0 for identical points.
func Distance(p1, p2 model.GeoPoint) float64 {
	lat1 := degToRad(p1.LatDeg)
	lat2 := degToRad(p2.LatDeg)
	dLat := degToRad(p2.LatDeg - p1.LatDeg)
	dLon := degToRad(p2.LonDeg - p1.LonDeg)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// InitialBearing returns the bearing from p1 toward p2 in degrees
// [0, 360), measured clockwise from true north.
func InitialBearing(p1, p2 model.GeoPoint) float64 {
	lat1 := degToRad(p1.LatDeg)
	lat2 := degToRad(p2.LatDeg)
	dLon := degToRad(p2.LonDeg - p1.LonDeg)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(radToDeg(math.Atan2(y, x)))
}

// DestinationPoint solves the direct geodesic problem: the point reached
// by travelling distanceKm along the great circle at the given initial
// heading. The heading is normalized to [0, 360) first. The origin's
// altitude is carried through unchanged.
func DestinationPoint(origin model.GeoPoint, headingDeg, distanceKm float64) model.GeoPoint {
	theta := degToRad(NormalizeAzimuth(headingDeg))
	delta := distanceKm / EarthRadiusKm

	lat1 := degToRad(origin.LatDeg)
	lon1 := degToRad(origin.LonDeg)

	sinLat2 := math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta)
	if sinLat2 > 1 {
		sinLat2 = 1
	} else if sinLat2 < -1 {
		sinLat2 = -1
	}
	lat2 := math.Asin(sinLat2)

	y := math.Sin(theta) * math.Sin(delta) * math.Cos(lat1)
	x := math.Cos(delta) - math.Sin(lat1)*sinLat2
	lon2 := lon1 + math.Atan2(y, x)

	latDeg := radToDeg(lat2)
	if latDeg > 90 {
		latDeg = 90
	} else if latDeg < -90 {
		latDeg = -90
	}

	return model.GeoPoint{
		LatDeg: latDeg,
		LonDeg: normalizeLongitude(radToDeg(lon2)),
		AltKm:  origin.AltKm,
	}
}
