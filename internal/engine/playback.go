package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/model"
	"github.com/signalsfoundry/skywatch/timectrl"
)

// Playback replays a predicted pass as a simulated live feed. The task
// owns its own cursor; it reads nothing but the immutable pass, so a
// rescan or relocation cannot corrupt a running replay. Cancelling the
// context stops it synchronously: the emit function is never called
// after Run returns.
type Playback struct {
	Pass model.Pass
	// Factor is virtual seconds per wall second. Zero or negative
	// means DefaultPlaybackFactor.
	Factor float64
	// Step is the virtual time between emissions. Zero or negative
	// means one second.
	Step time.Duration
}

// DefaultPlaybackFactor compresses a six-minute pass into a few
// seconds of replay.
const DefaultPlaybackFactor = 60.0

// Run replays the pass from rise to set, interpolating between the
// sampled points, and hands each look angle to emit. Returns ctx.Err()
// when cancelled mid-replay and nil after the set-time emission.
func (p Playback) Run(ctx context.Context, emit func(model.LookAngle)) error {
	if len(p.Pass.Points) == 0 {
		return fmt.Errorf("pass for %q has no sampled points", p.Pass.TargetID)
	}
	factor := p.Factor
	if factor <= 0 {
		factor = DefaultPlaybackFactor
	}

	player := timectrl.Player{
		Start: p.Pass.RiseTime,
		End:   p.Pass.SetTime,
		Speed: factor,
		Step:  p.Step,
	}
	return player.Run(ctx, func(cursor time.Time) {
		emit(LookAtPassTime(p.Pass, cursor))
	})
}

// LookAtPassTime interpolates the pass's sampled points at an instant.
// Times before the first point clamp to it, times after the last clamp
// to the last; azimuth follows the shorter arc so a north-crossing
// track does not spin the long way round.
func LookAtPassTime(pass model.Pass, at time.Time) model.LookAngle {
	pts := pass.Points
	if len(pts) == 1 || !at.After(pts[0].Time) {
		la := pts[0]
		la.Time = at
		return la
	}
	last := pts[len(pts)-1]
	if !at.Before(last.Time) {
		la := last
		la.Time = at
		return la
	}

	// Points are time-ordered; find the bracketing pair.
	hi := 1
	for hi < len(pts) && pts[hi].Time.Before(at) {
		hi++
	}
	lo := hi - 1

	span := pts[hi].Time.Sub(pts[lo].Time).Seconds()
	f := at.Sub(pts[lo].Time).Seconds() / span

	return model.LookAngle{
		Time:         at,
		AzimuthDeg:   lerpAzimuth(pts[lo].AzimuthDeg, pts[hi].AzimuthDeg, f),
		ElevationDeg: pts[lo].ElevationDeg + (pts[hi].ElevationDeg-pts[lo].ElevationDeg)*f,
		RangeKm:      pts[lo].RangeKm + (pts[hi].RangeKm-pts[lo].RangeKm)*f,
	}
}

// lerpAzimuth interpolates two compass bearings along the shorter arc.
func lerpAzimuth(a, b, f float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return core.NormalizeAzimuth(a + d*f)
}
