package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

// Defaults for PassConfig. A zero-valued numeric field falls back to
// the matching constant.
const (
	DefaultRiseElevationDeg = 10.0
	DefaultMinPassDuration  = 30 * time.Second
	DefaultSampleStep       = 30 * time.Second
	DefaultScanHorizon      = 120 * time.Hour
	DefaultGapTolerance     = 3

	refineResolution = time.Second
)

// PassConfig controls how the sampling grid is segmented into passes.
type PassConfig struct {
	// RiseElevationDeg is the elevation a target must reach for a pass
	// to be open.
	RiseElevationDeg float64
	// MinDuration discards passes shorter than this.
	MinDuration time.Duration
	// Step is the sampling interval. Passes that rise and set entirely
	// between two grid points are not detected.
	Step time.Duration
	// Horizon bounds the scan window.
	Horizon time.Duration
	// GapTolerance is how many consecutive propagation failures are
	// allowed inside a pass before the pass is abandoned.
	GapTolerance int
	// RequireDark keeps only passes whose culmination happens under a
	// dark observer sky.
	RequireDark bool
	// RequireSunlit drops passes whose target is inside the Earth's
	// shadow at culmination.
	RequireSunlit bool
	// RefineCrossings sharpens rise and set times by bisection down to
	// one second instead of leaving them on the sampling grid.
	RefineCrossings bool
}

// DefaultPassConfig returns the standard visual-spotting configuration.
func DefaultPassConfig() PassConfig {
	return PassConfig{
		RiseElevationDeg: DefaultRiseElevationDeg,
		MinDuration:      DefaultMinPassDuration,
		Step:             DefaultSampleStep,
		Horizon:          DefaultScanHorizon,
		GapTolerance:     DefaultGapTolerance,
		RequireDark:      true,
		RefineCrossings:  true,
	}
}

// PassPredictor walks a propagator over a sampling grid and segments
// the above-threshold stretches into passes.
type PassPredictor struct {
	cfg PassConfig
}

// NewPassPredictor fills zero numeric fields of cfg with defaults.
// Boolean fields are taken as given.
func NewPassPredictor(cfg PassConfig) *PassPredictor {
	if cfg.RiseElevationDeg <= 0 {
		cfg.RiseElevationDeg = DefaultRiseElevationDeg
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinPassDuration
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultSampleStep
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultScanHorizon
	}
	if cfg.GapTolerance <= 0 {
		cfg.GapTolerance = DefaultGapTolerance
	}
	return &PassPredictor{cfg: cfg}
}

// Config returns the effective configuration after defaulting.
func (p *PassPredictor) Config() PassConfig {
	return p.cfg
}

// openPass accumulates one in-progress pass during the sampling walk.
type openPass struct {
	rise     time.Time
	riseAz   float64
	points   []model.LookAngle
	maxEl    float64
	maxElAz  float64
	maxElAt  time.Time
	maxElPos Vec3
}

func (o *openPass) observe(la model.LookAngle, pos Vec3) {
	o.points = append(o.points, la)
	if la.ElevationDeg > o.maxEl {
		o.maxEl = la.ElevationDeg
		o.maxElAz = la.AzimuthDeg
		o.maxElAt = la.Time
		o.maxElPos = pos
	}
}

// Predict samples the propagator from start to start+Horizon and
// returns the accepted passes in time order. The context is checked at
// every grid point, so a superseded scan stops quickly.
func (p *PassPredictor) Predict(ctx context.Context, obs model.Observer, targetID string, prop Propagator, start time.Time) ([]model.Pass, error) {
	horizon := start.Add(p.cfg.Horizon)

	var (
		passes   []model.Pass
		current  *openPass
		failures int
		// lastBelow is the most recent grid point where the target was
		// below threshold, used as the bisection bracket for the rise.
		lastBelow    time.Time
		hasLastBelow bool
	)

	for t := start; !t.After(horizon); t = t.Add(p.cfg.Step) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sv, err := prop.Propagate(t)
		if err != nil {
			failures++
			if current != nil && failures > p.cfg.GapTolerance {
				// The trajectory went dark mid-pass; drop the fragment.
				current = nil
			}
			continue
		}
		failures = 0

		la := LookAngleAt(obs, sv.Point, t)
		visible := la.ElevationDeg >= p.cfg.RiseElevationDeg

		switch {
		case visible && current == nil:
			current = &openPass{rise: t, riseAz: la.AzimuthDeg}
			if p.cfg.RefineCrossings && hasLastBelow {
				if rt, rla, ok := p.refineRise(obs, prop, lastBelow, t); ok {
					current.rise = rt
					current.riseAz = rla.AzimuthDeg
					current.observe(rla, Vec3{})
				}
			}
			current.observe(la, sv.Position)

		case visible:
			current.observe(la, sv.Position)

		case current != nil:
			set, setAz := t, la.AzimuthDeg
			if p.cfg.RefineCrossings {
				if st, sla, ok := p.refineSet(obs, prop, current.points[len(current.points)-1].Time, t); ok {
					set, setAz = st, sla.AzimuthDeg
					current.observe(sla, Vec3{})
				}
			}
			if pass, ok := p.accept(current, obs, targetID, set, setAz); ok {
				passes = append(passes, pass)
			}
			current = nil
		}

		if !visible {
			lastBelow, hasLastBelow = t, true
		}
	}

	// A pass still open at the edge of the window is closed there
	// rather than discarded.
	if current != nil {
		setAz := current.points[len(current.points)-1].AzimuthDeg
		if pass, ok := p.accept(current, obs, targetID, horizon, setAz); ok {
			passes = append(passes, pass)
		}
	}

	return passes, nil
}

// accept applies the duration, darkness and illumination gates and
// materializes the pass.
func (p *PassPredictor) accept(o *openPass, obs model.Observer, targetID string, set time.Time, setAz float64) (model.Pass, bool) {
	duration := set.Sub(o.rise)
	if duration < p.cfg.MinDuration {
		return model.Pass{}, false
	}
	if p.cfg.RequireDark && !IsDarkEnough(o.maxElAt, obs) {
		return model.Pass{}, false
	}
	if p.cfg.RequireSunlit && o.maxElPos.Norm() > 0 {
		if SunlitStatusAt(o.maxElPos, o.maxElAt) == model.SunlitEclipsed {
			return model.Pass{}, false
		}
	}

	return model.Pass{
		TargetID:   targetID,
		RiseTime:   o.rise,
		RiseAzDeg:  o.riseAz,
		MaxElTime:  o.maxElAt,
		MaxElDeg:   o.maxEl,
		MaxElAzDeg: o.maxElAz,
		SetTime:    set,
		SetAzDeg:   setAz,
		Duration:   duration,
		Points:     o.points,
	}, true
}

// refineRise bisects (below, above] for the earliest time the target is
// at or over the threshold. Reports false if propagation fails inside
// the bracket, in which case the caller keeps the grid time.
func (p *PassPredictor) refineRise(obs model.Observer, prop Propagator, below, above time.Time) (time.Time, model.LookAngle, bool) {
	lo, hi := below, above
	for hi.Sub(lo) > refineResolution {
		mid := lo.Add(hi.Sub(lo) / 2)
		sv, err := prop.Propagate(mid)
		if err != nil {
			return time.Time{}, model.LookAngle{}, false
		}
		if LookAngleAt(obs, sv.Point, mid).ElevationDeg >= p.cfg.RiseElevationDeg {
			hi = mid
		} else {
			lo = mid
		}
	}
	sv, err := prop.Propagate(hi)
	if err != nil {
		return time.Time{}, model.LookAngle{}, false
	}
	return hi, LookAngleAt(obs, sv.Point, hi), true
}

// refineSet bisects [above, below) for the moment the target drops
// under the threshold.
func (p *PassPredictor) refineSet(obs model.Observer, prop Propagator, above, below time.Time) (time.Time, model.LookAngle, bool) {
	lo, hi := above, below
	for hi.Sub(lo) > refineResolution {
		mid := lo.Add(hi.Sub(lo) / 2)
		sv, err := prop.Propagate(mid)
		if err != nil {
			return time.Time{}, model.LookAngle{}, false
		}
		if LookAngleAt(obs, sv.Point, mid).ElevationDeg >= p.cfg.RiseElevationDeg {
			lo = mid
		} else {
			hi = mid
		}
	}
	sv, err := prop.Propagate(hi)
	if err != nil {
		return time.Time{}, model.LookAngle{}, false
	}
	return hi, LookAngleAt(obs, sv.Point, hi), true
}
