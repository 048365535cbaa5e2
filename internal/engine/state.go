// Package engine owns the process-wide visibility state: the observer,
// the accepted pass lists, and the live look angles. It enforces
// last-request-wins semantics for the expensive horizon scan.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/kb"
	"github.com/signalsfoundry/skywatch/model"
)

// Re-export sentinel errors so API callers can depend on engine.*
// instead of reaching into kb/core/model directly.
var (
	// ErrInvalidObserver indicates observer coordinates failed validation.
	ErrInvalidObserver = model.ErrInvalidObserver
	// ErrTargetInvalid indicates a target definition failed validation.
	ErrTargetInvalid = kb.ErrTargetInvalid
	// ErrTargetExists indicates a target ID is already taken.
	ErrTargetExists = kb.ErrTargetExists
	// ErrTargetNotFound indicates a requested target is not in the catalog.
	ErrTargetNotFound = kb.ErrTargetNotFound
	// ErrNoSolution indicates the propagator has no usable state for the
	// requested time.
	ErrNoSolution = core.ErrNoSolution
)

// LiveState is the latest computed look snapshot for one target.
type LiveState struct {
	TargetID string             `json:"target_id"`
	Look     model.LookAngle    `json:"look"`
	Point    model.GeoPoint     `json:"point"`
	Sunlit   model.SunlitStatus `json:"sunlit"`
	SkyHint  string             `json:"sky_hint"`
	Visible  bool               `json:"visible"`
}

// EngineMetricsRecorder receives count updates for engine entities.
type EngineMetricsRecorder interface {
	SetEngineCounts(targets, passesCached int)
}

// EngineState coordinates the observer, the per-target pass lists, and
// the live look view.
//
// Single-writer discipline: SetObserver is the only observer writer,
// CompleteScan the only pass-list writer, UpdateLive the only live-view
// writer. Everything else reads snapshots.
type EngineState struct {
	// mu is the coarse engine-level lock. Take this before the
	// catalog's lock to maintain the global lock ordering of
	// EngineState -> catalog.
	mu sync.RWMutex

	observer model.Observer
	passes   map[string][]model.Pass
	live     map[string]LiveState

	// scanToken is bumped on every relocation and scan start; a scan
	// result whose token no longer matches is stale and discarded.
	scanToken uint64
	scanning  bool

	// cancelScan stops the in-flight scan's context, if any.
	cancelScan context.CancelFunc

	subs []func(model.Observer)

	catalog *kb.TargetCatalog
	passCfg core.PassConfig
	log     logging.Logger
	metrics EngineMetricsRecorder

	// propMu guards the propagator cache only; it nests inside nothing.
	propMu       sync.Mutex
	props        map[string]propEntry
	newPropagator func(model.TargetDefinition) core.Propagator
}

type propEntry struct {
	line1, line2 string
	prop         core.Propagator
}

// EngineOption customises EngineState construction.
type EngineOption func(*EngineState)

// WithMetricsRecorder attaches an optional recorder for entity counts.
func WithMetricsRecorder(m EngineMetricsRecorder) EngineOption {
	return func(s *EngineState) {
		s.metrics = m
	}
}

// WithPassConfig overrides the default pass scan configuration.
func WithPassConfig(cfg core.PassConfig) EngineOption {
	return func(s *EngineState) {
		s.passCfg = cfg
	}
}

// WithPropagatorFactory substitutes how propagators are built from
// target definitions. The default builds SGP4 from the TLE lines;
// tests and canned scenarios inject scripted propagators here.
func WithPropagatorFactory(fn func(model.TargetDefinition) core.Propagator) EngineOption {
	return func(s *EngineState) {
		if fn != nil {
			s.newPropagator = fn
		}
	}
}

// NewEngineState validates the initial observer and wires the catalog.
func NewEngineState(obs model.Observer, catalog *kb.TargetCatalog, log logging.Logger, opts ...EngineOption) (*EngineState, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = kb.NewTargetCatalog()
	}
	if log == nil {
		log = logging.Noop()
	}

	s := &EngineState{
		observer:      obs,
		passes:        make(map[string][]model.Pass),
		live:          make(map[string]LiveState),
		catalog:       catalog,
		passCfg:       core.DefaultPassConfig(),
		log:           log,
		props:         make(map[string]propEntry),
		newPropagator: sgp4Factory,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.mu.Lock()
	s.updateMetricsLocked()
	s.mu.Unlock()
	return s, nil
}

func sgp4Factory(t model.TargetDefinition) core.Propagator {
	return core.NewSGP4FromTLE(t.Line1, t.Line2)
}

// Catalog exposes the target catalog.
func (s *EngineState) Catalog() *kb.TargetCatalog {
	return s.catalog
}

// Observer returns the current observer location.
func (s *EngineState) Observer() model.Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observer
}

// PassConfig returns the scan configuration.
func (s *EngineState) PassConfig() core.PassConfig {
	return s.passCfg
}

// SetObserver relocates the observer. The new coordinates are validated
// first; on failure nothing is mutated. On success all passes and live
// state are discarded, the scan token is bumped so in-flight results
// become stale, the running scan's context is cancelled, and
// subscribers are notified so a fresh scan starts.
func (s *EngineState) SetObserver(ctx context.Context, obs model.Observer) error {
	if err := obs.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.observer = obs
	s.passes = make(map[string][]model.Pass)
	s.live = make(map[string]LiveState)
	s.scanToken++
	s.scanning = false
	cancel := s.cancelScan
	s.cancelScan = nil
	subs := append([]func(model.Observer){}, s.subs...)
	s.updateMetricsLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.log.Info(ctx, "observer relocated",
		logging.Float64("lat_deg", obs.Latitude),
		logging.Float64("lon_deg", obs.Longitude),
		logging.Float64("alt_km", obs.AltitudeKm),
	)

	for _, fn := range subs {
		fn(obs)
	}
	return nil
}

// Subscribe registers a callback for observer relocations. It returns
// an unsubscribe function.
func (s *EngineState) Subscribe(fn func(model.Observer)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < 0 || idx >= len(s.subs) {
			return
		}
		s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
		idx = -1
	}
}

// BeginScan issues a fresh scan token, records the new scan's cancel
// function, and cancels the previous in-flight scan.
func (s *EngineState) BeginScan(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	s.scanToken++
	token := s.scanToken
	prev := s.cancelScan
	s.cancelScan = cancel
	s.scanning = true
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	return token
}

// CompleteScan installs scan results if the token is still current.
// Stale results are discarded without touching state; the return value
// tells the caller which happened.
func (s *EngineState) CompleteScan(token uint64, results map[string][]model.Pass) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.scanToken {
		return false
	}
	if results == nil {
		results = make(map[string][]model.Pass)
	}
	s.passes = results
	s.scanning = false
	s.cancelScan = nil
	s.updateMetricsLocked()
	return true
}

// CurrentScanToken returns the latest issued token.
func (s *EngineState) CurrentScanToken() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanToken
}

// ScanInProgress reports whether a scan has begun and not yet installed
// its results.
func (s *EngineState) ScanInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanning
}

// Passes returns a copy of the accepted pass list for a target. The
// target must exist in the catalog; a catalogued target with no scan
// results yet yields an empty list.
func (s *EngineState) Passes(targetID string) ([]model.Pass, error) {
	if _, err := s.catalog.Get(targetID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Pass(nil), s.passes[targetID]...), nil
}

// NextPass returns the first pass still in progress or upcoming at the
// given instant. ok is false when no such pass is cached.
func (s *EngineState) NextPass(targetID string, at time.Time) (model.Pass, bool, error) {
	if _, err := s.catalog.Get(targetID); err != nil {
		return model.Pass{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.passes[targetID] {
		if p.SetTime.After(at) {
			return p, true, nil
		}
	}
	return model.Pass{}, false, nil
}

// ComputeLook derives the look snapshot for a target at an instant.
// Pure read: the live view is not touched.
func (s *EngineState) ComputeLook(targetID string, at time.Time) (LiveState, error) {
	target, err := s.catalog.Get(targetID)
	if err != nil {
		return LiveState{}, err
	}
	obs := s.Observer()

	sv, err := s.propagatorFor(target).Propagate(at)
	if err != nil {
		return LiveState{}, fmt.Errorf("target %q at %s: %w", targetID, at.UTC().Format(time.RFC3339), err)
	}

	look := core.LookAngleAt(obs, sv.Point, at)
	return LiveState{
		TargetID: targetID,
		Look:     look,
		Point:    sv.Point,
		Sunlit:   core.SunlitStatusAt(sv.Position, at),
		SkyHint:  core.DescribeSky(look),
		Visible:  look.ElevationDeg >= 0,
	}, nil
}

// RefreshLive recomputes the live view for every catalogued target at
// the given instant. Targets whose propagation fails at this instant
// drop out of the view until a later tick succeeds.
func (s *EngineState) RefreshLive(ctx context.Context, at time.Time) {
	targets := s.catalog.List()
	states := make([]LiveState, 0, len(targets))
	for _, target := range targets {
		ls, err := s.ComputeLook(target.ID, at)
		if err != nil {
			s.log.Debug(ctx, "live look unavailable",
				logging.String("target_id", target.ID),
				logging.String("error", err.Error()),
			)
			continue
		}
		states = append(states, ls)
	}
	s.UpdateLive(states)
}

// UpdateLive replaces the whole live view.
func (s *EngineState) UpdateLive(states []LiveState) {
	live := make(map[string]LiveState, len(states))
	for _, ls := range states {
		live[ls.TargetID] = ls
	}

	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
}

// Live returns the cached live state for a target.
func (s *EngineState) Live(targetID string) (LiveState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.live[targetID]
	return ls, ok
}

// Snapshot captures a consistent view of the engine state. The maps are
// copies; Pass values share their immutable Points arrays.
type Snapshot struct {
	Observer  model.Observer
	Passes    map[string][]model.Pass
	Live      map[string]LiveState
	ScanToken uint64
	Scanning  bool
}

// Snapshot returns a copy of the current state.
func (s *EngineState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passes := make(map[string][]model.Pass, len(s.passes))
	for id, list := range s.passes {
		passes[id] = append([]model.Pass(nil), list...)
	}
	live := make(map[string]LiveState, len(s.live))
	for id, ls := range s.live {
		live[id] = ls
	}

	return Snapshot{
		Observer:  s.observer,
		Passes:    passes,
		Live:      live,
		ScanToken: s.scanToken,
		Scanning:  s.scanning,
	}
}

// propagatorFor returns a cached propagator for the target, rebuilding
// it when the element set has changed since the cache entry was made.
func (s *EngineState) propagatorFor(target model.TargetDefinition) core.Propagator {
	s.propMu.Lock()
	defer s.propMu.Unlock()

	entry, ok := s.props[target.ID]
	if ok && entry.line1 == target.Line1 && entry.line2 == target.Line2 {
		return entry.prop
	}
	prop := s.newPropagator(target)
	s.props[target.ID] = propEntry{line1: target.Line1, line2: target.Line2, prop: prop}
	return prop
}

// updateMetricsLocked pushes current counts into the metrics recorder.
// Caller must hold s.mu.
func (s *EngineState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	cached := 0
	for _, list := range s.passes {
		cached += len(list)
	}
	s.metrics.SetEngineCounts(s.catalog.Len(), cached)
}
