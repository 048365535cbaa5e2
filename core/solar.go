package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

// Low-precision solar position, good to a few tenths of a degree in
// altitude. That is enough to classify twilight, which is all the
// visibility pipeline needs from the sun.

// CivilDarknessAltitudeDeg is the solar altitude below which the sky is
// considered dark enough for a sunlit body to be spotted. -6° is the
// civil twilight boundary.
const CivilDarknessAltitudeDeg = -6.0

const (
	j2000JulianDay     = 2451545.0
	astronomicalUnitKm = 1.495978707e8
	sunRadiusKm        = 696000.0
)

func julianDay(t time.Time) float64 {
	return 2440587.5 + float64(t.UnixMilli())/86400000.0
}

func daysSinceJ2000(t time.Time) float64 {
	return julianDay(t) - j2000JulianDay
}

// sunEquatorial returns the sun's geocentric right ascension and
// declination in radians, plus the Earth-sun distance in km, using the
// classic mean-longitude + equation-of-center approximation.
func sunEquatorial(t time.Time) (ra, dec, distKm float64) {
	d := daysSinceJ2000(t)

	g := degToRad(math.Mod(357.529+0.98560028*d, 360)) // mean anomaly
	q := math.Mod(280.459+0.98564736*d, 360)           // mean longitude

	// Apparent ecliptic longitude with equation-of-center correction.
	l := degToRad(q + 1.915*math.Sin(g) + 0.020*math.Sin(2*g))

	// Obliquity of the ecliptic.
	e := degToRad(23.439 - 0.00000036*d)

	ra = math.Atan2(math.Cos(e)*math.Sin(l), math.Cos(l))
	dec = math.Asin(math.Sin(e) * math.Sin(l))

	distAU := 1.00014 - 0.01671*math.Cos(g) - 0.00014*math.Cos(2*g)
	return ra, dec, distAU * astronomicalUnitKm
}

// greenwichSiderealDeg returns GMST in degrees, normalized to [0, 360).
func greenwichSiderealDeg(t time.Time) float64 {
	d := daysSinceJ2000(t)
	return NormalizeAzimuth(280.46061837 + 360.98564736629*d)
}

// SunAltitude returns the sun's altitude above the horizon in degrees
// for the given time and geographic location.
func SunAltitude(t time.Time, latDeg, lonDeg float64) float64 {
	ra, dec, _ := sunEquatorial(t)

	lst := greenwichSiderealDeg(t) + lonDeg
	h := degToRad(lst) - ra
	// Normalize the hour angle to (-pi, pi].
	h = math.Mod(h, 2*math.Pi)
	if h > math.Pi {
		h -= 2 * math.Pi
	} else if h <= -math.Pi {
		h += 2 * math.Pi
	}

	lat := degToRad(latDeg)
	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(h)
	if sinAlt > 1 {
		sinAlt = 1
	} else if sinAlt < -1 {
		sinAlt = -1
	}
	return radToDeg(math.Asin(sinAlt))
}

// IsDarkEnough reports whether the sky at the observer is dark enough
// for visual spotting: solar altitude below the civil twilight boundary.
func IsDarkEnough(t time.Time, obs model.Observer) bool {
	return SunAltitude(t, obs.Latitude, obs.Longitude) < CivilDarknessAltitudeDeg
}

// SunPositionECEF returns the sun's position as an ECEF vector in km,
// derived from the equatorial coordinates and Greenwich sidereal time.
// Used by the eclipse geometry.
func SunPositionECEF(t time.Time) Vec3 {
	ra, dec, distKm := sunEquatorial(t)

	// Unit direction in the inertial frame, then rotate by GMST about
	// the pole to reach the Earth-fixed frame.
	cosDec := math.Cos(dec)
	xi := cosDec * math.Cos(ra)
	yi := cosDec * math.Sin(ra)
	zi := math.Sin(dec)

	gmst := degToRad(greenwichSiderealDeg(t))
	sinG, cosG := math.Sincos(gmst)

	return Vec3{
		X: distKm * (xi*cosG + yi*sinG),
		Y: distKm * (-xi*sinG + yi*cosG),
		Z: distKm * zi,
	}
}
