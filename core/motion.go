package core

import (
	"errors"
	"math"
	"sort"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/signalsfoundry/skywatch/model"
)

// ErrNoSolution is returned when a propagator cannot produce a usable
// position for the requested time: decayed elements, NaN output, or a
// time outside a scripted table.
var ErrNoSolution = errors.New("no ephemeris solution")

// Orbit radii outside this band mean SGP4 has diverged rather than
// produced a real satellite position.
const (
	minOrbitRadiusKm = 6400.0
	maxOrbitRadiusKm = 60000.0
)

// StateVector is a propagated target state at one instant. Point and
// Position are Earth-fixed; Velocity stays in the inertial frame that
// SGP4 emits, in km/s.
type StateVector struct {
	Point    model.GeoPoint
	Position Vec3
	Velocity Vec3
}

// Propagator produces target state vectors over time.
type Propagator interface {
	Propagate(t time.Time) (StateVector, error)
}

// SGP4Propagator wraps a go-satellite SGP4 model initialized from a
// two-line element set.
type SGP4Propagator struct {
	sat satellite.Satellite
}

// NewSGP4FromTLE constructs a propagator from TLE lines. The lines are
// assumed to be structurally valid; the target catalog validates user
// input before it gets here.
func NewSGP4FromTLE(line1, line2 string) *SGP4Propagator {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Propagator{sat: sat}
}

// Propagate runs SGP4 to t and converts to the Earth-fixed frame.
// go-satellite works in kilometres throughout.
func (p *SGP4Propagator) Propagate(t time.Time) (StateVector, error) {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, velECI := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	pos := Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
	if !finiteVec(pos) {
		return StateVector{}, ErrNoSolution
	}
	if r := pos.Norm(); r < minOrbitRadiusKm || r > maxOrbitRadiusKm {
		return StateVector{}, ErrNoSolution
	}

	return StateVector{
		Point:    ECEFToGeodetic(pos),
		Position: pos,
		Velocity: Vec3{X: velECI.X, Y: velECI.Y, Z: velECI.Z},
	}, nil
}

func finiteVec(v Vec3) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// ScriptedSample is one waypoint of a scripted trajectory.
type ScriptedSample struct {
	Time  time.Time
	Point model.GeoPoint
}

// ScriptedPropagator replays a fixed table of waypoints, interpolating
// linearly between them. Times outside the table yield ErrNoSolution.
// Useful for canned scenarios and tests.
type ScriptedPropagator struct {
	samples []ScriptedSample
}

// NewScriptedPropagator copies and time-sorts the given waypoints.
func NewScriptedPropagator(samples []ScriptedSample) *ScriptedPropagator {
	s := make([]ScriptedSample, len(samples))
	copy(s, samples)
	sort.Slice(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	return &ScriptedPropagator{samples: s}
}

// Propagate interpolates the scripted table at t.
func (p *ScriptedPropagator) Propagate(t time.Time) (StateVector, error) {
	n := len(p.samples)
	if n == 0 || t.Before(p.samples[0].Time) || t.After(p.samples[n-1].Time) {
		return StateVector{}, ErrNoSolution
	}

	i := sort.Search(n, func(i int) bool { return !p.samples[i].Time.Before(t) })
	if i < n && p.samples[i].Time.Equal(t) {
		return scriptedState(p.samples[i].Point), nil
	}

	lo, hi := p.samples[i-1], p.samples[i]
	span := hi.Time.Sub(lo.Time).Seconds()
	f := t.Sub(lo.Time).Seconds() / span

	pt := model.GeoPoint{
		LatDeg: lerp(lo.Point.LatDeg, hi.Point.LatDeg, f),
		LonDeg: lerpLongitude(lo.Point.LonDeg, hi.Point.LonDeg, f),
		AltKm:  lerp(lo.Point.AltKm, hi.Point.AltKm, f),
	}
	return scriptedState(pt), nil
}

func scriptedState(pt model.GeoPoint) StateVector {
	return StateVector{Point: pt, Position: GeodeticToECEF(pt)}
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

// lerpLongitude interpolates along the shorter arc so a waypoint pair
// straddling the antimeridian does not sweep across the whole map.
func lerpLongitude(a, b, f float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return normalizeLongitude(a + d*f)
}
