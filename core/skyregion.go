package core

import (
	"fmt"

	"github.com/signalsfoundry/skywatch/model"
)

// compassPoints are the 16-wind rose names, clockwise from north.
var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassPoint names the 16-wind sector containing the azimuth.
func CompassPoint(azDeg float64) string {
	az := NormalizeAzimuth(azDeg)
	idx := int((az+11.25)/22.5) % 16
	return compassPoints[idx]
}

// SkySector is a coarse region of the visible sky, a compass direction
// paired with an elevation band.
type SkySector struct {
	Compass string
	Band    SkyBand
}

// SkyBand is a named elevation band.
type SkyBand string

const (
	BandBelowHorizon SkyBand = "below_horizon"
	BandHorizon      SkyBand = "horizon"
	BandLow          SkyBand = "low"
	BandMid          SkyBand = "mid"
	BandHigh         SkyBand = "high"
	BandOverhead     SkyBand = "overhead"
)

func elevationToBand(elDeg float64) SkyBand {
	switch {
	case elDeg < 0:
		return BandBelowHorizon
	case elDeg < 10:
		return BandHorizon
	case elDeg < 30:
		return BandLow
	case elDeg < 60:
		return BandMid
	case elDeg < 85:
		return BandHigh
	default:
		return BandOverhead
	}
}

// SectorFor places a look angle into its sky sector.
func SectorFor(la model.LookAngle) SkySector {
	return SkySector{
		Compass: CompassPoint(la.AzimuthDeg),
		Band:    elevationToBand(la.ElevationDeg),
	}
}

// DescribeSky renders a look angle as a spotter-friendly phrase, such
// as "high in the SW sky" or "on the NNE horizon".
func DescribeSky(la model.LookAngle) string {
	s := SectorFor(la)
	switch s.Band {
	case BandBelowHorizon:
		return "below the horizon"
	case BandHorizon:
		return fmt.Sprintf("on the %s horizon", s.Compass)
	case BandLow:
		return fmt.Sprintf("low in the %s sky", s.Compass)
	case BandMid:
		return fmt.Sprintf("midway up the %s sky", s.Compass)
	case BandHigh:
		return fmt.Sprintf("high in the %s sky", s.Compass)
	default:
		return "directly overhead"
	}
}
