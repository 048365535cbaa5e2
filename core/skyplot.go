package core

import (
	"math"

	"github.com/signalsfoundry/skywatch/model"
)

// Sky projections map look angles onto plotting surfaces. Both are
// pure: the same look angle and plot always give the same pixel.

// PolarPlot is the classic all-sky chart: zenith at the center, horizon
// on the rim, north up unless a heading rotates the chart.
type PolarPlot struct {
	CenterX float64
	CenterY float64
	Radius  float64
	// HeadingDeg rotates the chart so that the direction the observer
	// faces points up. Zero keeps north up.
	HeadingDeg float64
}

// Project maps a look angle onto the chart. Targets below the horizon
// fall outside the rim and are reported as not plottable.
func (p PolarPlot) Project(la model.LookAngle) (model.ProjectedPoint, bool) {
	if la.ElevationDeg < 0 {
		return model.ProjectedPoint{}, false
	}

	relAz := NormalizeAzimuth(la.AzimuthDeg - p.HeadingDeg)
	el := la.ElevationDeg
	if el > 90 {
		el = 90
	}
	radius := p.Radius * (1 - el/90)

	// Screen coordinates grow downward, so up-is-north needs the
	// azimuth measured from the negative y axis.
	theta := degToRad(relAz - 90)
	return model.ProjectedPoint{
		X:    p.CenterX + radius*math.Cos(theta),
		Y:    p.CenterY + radius*math.Sin(theta),
		Mode: model.ProjectionPolar,
	}, true
}

// PanoramaPlot is a rectangular horizon strip covering an azimuth
// window, horizon along the bottom edge. A window with AzMinDeg >
// AzMaxDeg wraps through north.
type PanoramaPlot struct {
	Width  float64
	Height float64
	// Azimuth window. Equal values mean the full 360 degrees.
	AzMinDeg float64
	AzMaxDeg float64
	// MaxElevationDeg is the elevation at the top edge. Zero means 90.
	MaxElevationDeg float64
}

// Project maps a look angle into the strip. Azimuths outside the window
// are not plottable; elevations are clamped to [0, MaxElevationDeg] so
// a setting target slides along the baseline rather than vanishing.
func (p PanoramaPlot) Project(la model.LookAngle) (model.ProjectedPoint, bool) {
	span := NormalizeAzimuth(p.AzMaxDeg - p.AzMinDeg)
	if span == 0 {
		span = 360
	}
	rel := NormalizeAzimuth(la.AzimuthDeg - p.AzMinDeg)
	if rel > span {
		return model.ProjectedPoint{}, false
	}

	elMax := p.MaxElevationDeg
	if elMax <= 0 {
		elMax = 90
	}
	el := la.ElevationDeg
	if el < 0 {
		el = 0
	} else if el > elMax {
		el = elMax
	}

	return model.ProjectedPoint{
		X:    rel / span * p.Width,
		Y:    p.Height * (1 - el/elMax),
		Mode: model.ProjectionPanorama,
	}, true
}
