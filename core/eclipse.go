package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

// SunlitStatusAt classifies whether a target at the given Earth-fixed
// position is in sunlight, in the penumbra, or fully inside the Earth's
// shadow cone at time t.
//
// The test compares three angles as seen from the target: the
// separation between the sun direction and the nadir direction, the
// apparent angular radius of the Earth, and the apparent angular radius
// of the sun.
func SunlitStatusAt(pos Vec3, t time.Time) model.SunlitStatus {
	r := pos.Norm()
	if r <= EarthRadiusKm {
		return model.SunlitUnknown
	}

	toSun := SunPositionECEF(t).Sub(pos)
	sunDist := toSun.Norm()

	// Angle between the sun and the Earth's center from the target.
	cosSep := -pos.Dot(toSun) / (r * sunDist)
	if cosSep > 1 {
		cosSep = 1
	} else if cosSep < -1 {
		cosSep = -1
	}
	sep := math.Acos(cosSep)

	earthAng := math.Asin(EarthRadiusKm / r)
	sunAng := math.Asin(sunRadiusKm / sunDist)
	diff := math.Abs(earthAng - sunAng)

	switch {
	case sep < diff && earthAng > sunAng:
		return model.SunlitEclipsed
	case sep > diff && earthAng+sunAng > sep:
		return model.SunlitPenumbra
	default:
		return model.Sunlit
	}
}
