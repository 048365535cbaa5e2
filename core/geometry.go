package core

import (
	"math"

	"github.com/signalsfoundry/skywatch/model"
)

// EarthRadiusKm is the mean Earth radius used for all geometry in the
// engine (kilometres). The spherical model is deliberate: the precision
// target is naked-eye pass spotting, not astrometry.
const EarthRadiusKm = 6371.0

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// GeodeticToECEF converts a geodetic point on the spherical model to an
// ECEF vector. The radius is EarthRadiusKm plus the point's altitude.
func GeodeticToECEF(p model.GeoPoint) Vec3 {
	r := EarthRadiusKm + p.AltKm
	lat := degToRad(p.LatDeg)
	lon := degToRad(p.LonDeg)

	cosLat := math.Cos(lat)
	return Vec3{
		X: r * cosLat * math.Cos(lon),
		Y: r * cosLat * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// ECEFToGeodetic converts an ECEF vector back to a geodetic point on the
// spherical model. The zero vector maps to the north pole at depth -R,
// which callers treat as "no solution" territory.
func ECEFToGeodetic(v Vec3) model.GeoPoint {
	r := v.Norm()
	if r == 0 {
		return model.GeoPoint{LatDeg: 90, LonDeg: 0, AltKm: -EarthRadiusKm}
	}
	return model.GeoPoint{
		LatDeg: radToDeg(math.Asin(v.Z / r)),
		LonDeg: normalizeLongitude(radToDeg(math.Atan2(v.Y, v.X))),
		AltKm:  r - EarthRadiusKm,
	}
}

// HasLineOfSight checks whether the straight segment between p1 and p2
// clears the Earth sphere. If the segment intersects the sphere the
// Earth blocks the view and the function returns false.
//
// All positions are ECEF in kilometres.
func HasLineOfSight(p1, p2 Vec3) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		// Degenerate case: same point. Outside Earth counts as clear,
		// inside as blocked.
		return p1.Dot(p1) > EarthRadiusKm*EarthRadiusKm
	}

	// Closest point on the segment to the Earth's centre (origin).
	// t* minimises |p1 + t v|^2 over t ∈ ℝ.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Vec3{
		X: p1.X + v.X*t,
		Y: p1.Y + v.Y*t,
		Z: p1.Z + v.Z*t,
	}

	return closest.Dot(closest) > EarthRadiusKm*EarthRadiusKm
}

// ElevationDegrees returns the geometric elevation of the target as seen
// from the observer, in degrees: 0° = horizon, 90° = overhead.
//
// This is the full 3D form. Pass segmentation uses the projector's
// flat-triangle model instead; tests use this one as a cross-check.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := Vec3{
		X: observer.X / r,
		Y: observer.Y / r,
		Z: observer.Z / r,
	}

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := radToDeg(math.Acos(cosGamma))

	return 90.0 - gammaDeg
}
