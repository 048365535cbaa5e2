package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/skywatch/core"
)

// Query parameter parsing. Everything malformed maps to
// ErrInvalidRequest so the error layer answers 400.

func requiredTargetParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("target"))
	if id == "" {
		return "", fmt.Errorf("%w: missing target parameter", ErrInvalidRequest)
	}
	return id, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s=%q is not a number", ErrInvalidRequest, name, raw)
	}
	return v, nil
}

func requiredFloatParam(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s parameter", ErrInvalidRequest, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s=%q is not a number", ErrInvalidRequest, name, raw)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s=%q is not an integer", ErrInvalidRequest, name, raw)
	}
	return v, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: parameter %s=%q is not a boolean", ErrInvalidRequest, name, raw)
	}
	return v, nil
}

func timeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parameter %s=%q is not RFC 3339", ErrInvalidRequest, name, raw)
	}
	return t, nil
}

// lookAngleParams reads the az/el pair shared by the projection
// endpoints and checks their physical ranges.
func lookAngleParams(r *http.Request) (azDeg, elDeg float64, err error) {
	azDeg, err = requiredFloatParam(r, "az")
	if err != nil {
		return 0, 0, err
	}
	elDeg, err = requiredFloatParam(r, "el")
	if err != nil {
		return 0, 0, err
	}
	if elDeg < -90 || elDeg > 90 {
		return 0, 0, fmt.Errorf("%w: elevation %.2f out of range [-90, 90]", ErrInvalidRequest, elDeg)
	}
	return core.NormalizeAzimuth(azDeg), elDeg, nil
}

// polarPlotParams assembles a polar plot from query parameters, with a
// unit chart as the default.
func polarPlotParams(r *http.Request) (core.PolarPlot, error) {
	radius, err := floatParam(r, "radius", 100)
	if err != nil {
		return core.PolarPlot{}, err
	}
	if radius <= 0 {
		return core.PolarPlot{}, fmt.Errorf("%w: radius must be positive", ErrInvalidRequest)
	}
	cx, err := floatParam(r, "cx", radius)
	if err != nil {
		return core.PolarPlot{}, err
	}
	cy, err := floatParam(r, "cy", radius)
	if err != nil {
		return core.PolarPlot{}, err
	}
	heading, err := floatParam(r, "heading", 0)
	if err != nil {
		return core.PolarPlot{}, err
	}
	return core.PolarPlot{
		CenterX:    cx,
		CenterY:    cy,
		Radius:     radius,
		HeadingDeg: heading,
	}, nil
}

// panoramaPlotParams assembles a horizon strip from query parameters.
func panoramaPlotParams(r *http.Request) (core.PanoramaPlot, error) {
	width, err := floatParam(r, "width", 360)
	if err != nil {
		return core.PanoramaPlot{}, err
	}
	height, err := floatParam(r, "height", 90)
	if err != nil {
		return core.PanoramaPlot{}, err
	}
	if width <= 0 || height <= 0 {
		return core.PanoramaPlot{}, fmt.Errorf("%w: width and height must be positive", ErrInvalidRequest)
	}
	azMin, err := floatParam(r, "az_min", 0)
	if err != nil {
		return core.PanoramaPlot{}, err
	}
	azMax, err := floatParam(r, "az_max", 0)
	if err != nil {
		return core.PanoramaPlot{}, err
	}
	elMax, err := floatParam(r, "el_max", 90)
	if err != nil {
		return core.PanoramaPlot{}, err
	}
	if elMax <= 0 || elMax > 90 {
		return core.PanoramaPlot{}, fmt.Errorf("%w: el_max must be in (0, 90]", ErrInvalidRequest)
	}
	return core.PanoramaPlot{
		Width:           width,
		Height:          height,
		AzMinDeg:        azMin,
		AzMaxDeg:        azMax,
		MaxElevationDeg: elMax,
	}, nil
}
