package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

// LookAngleAt projects a target position into the observer's local sky:
// azimuth from true north, elevation above the horizon, and slant range.
//
// Azimuth is the great-circle initial bearing toward the sub-target
// point. Elevation comes from a flat right triangle, altitude difference
// over ground distance, which understates elevation for far-away
// targets; ElevationDegrees in geometry.go is the spherical cross-check.
// Range is the full 3D chord between the two positions.
func LookAngleAt(obs model.Observer, target model.GeoPoint, t time.Time) model.LookAngle {
	groundKm := Distance(obs.Point(), target)
	deltaAltKm := target.AltKm - obs.AltitudeKm

	var azDeg, elDeg float64
	if groundKm == 0 {
		// Directly above (or below) the observer. Azimuth is
		// meaningless there; report north.
		azDeg = 0
		switch {
		case deltaAltKm > 0:
			elDeg = 90
		case deltaAltKm < 0:
			elDeg = -90
		}
	} else {
		azDeg = InitialBearing(obs.Point(), target)
		elDeg = radToDeg(math.Atan2(deltaAltKm, groundKm))
	}

	rangeKm := GeodeticToECEF(obs.Point()).DistanceTo(GeodeticToECEF(target))

	return model.LookAngle{
		Time:         t,
		AzimuthDeg:   azDeg,
		ElevationDeg: elDeg,
		RangeKm:      rangeKm,
	}
}
