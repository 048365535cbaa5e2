package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/model"
	"github.com/signalsfoundry/skywatch/timectrl"
)

// 09:00 UTC is 01:00 local at the test observer: dark sky.
var scanStart = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

// archPropagator scripts a target hovering 100 km northeast of the
// observer whose altitude follows a 0 -> 52 -> 0 degree elevation arc,
// one waypoint per 30-second step.
func archPropagator(obs model.Observer, t0 time.Time) *core.ScriptedPropagator {
	ground := core.DestinationPoint(obs.Point(), 45, 100)
	groundKm := core.Distance(obs.Point(), ground)

	els := make([]float64, 15)
	for k := 1; k <= 13; k++ {
		off := float64(k-7) / 6
		els[k] = 52 - 40*off*off
	}

	samples := make([]core.ScriptedSample, len(els))
	for i, el := range els {
		pt := ground
		pt.AltKm = obs.AltitudeKm + groundKm*math.Tan(el*math.Pi/180)
		samples[i] = core.ScriptedSample{Time: t0.Add(time.Duration(i) * 30 * time.Second), Point: pt}
	}
	return core.NewScriptedPropagator(samples)
}

func shortScanConfig() core.PassConfig {
	cfg := core.DefaultPassConfig()
	cfg.Horizon = 7 * time.Minute
	cfg.RefineCrossings = false
	return cfg
}

type recordingScanMetrics struct {
	mu         sync.Mutex
	scans      int
	samples    int
	failures   int
	superseded int
}

func (m *recordingScanMetrics) ObserveScan(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
}

func (m *recordingScanMetrics) AddSamples(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples += n
}

func (m *recordingScanMetrics) IncPropagationFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *recordingScanMetrics) IncSuperseded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.superseded++
}

func (m *recordingScanMetrics) counts() (scans, samples, failures, superseded int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans, m.samples, m.failures, m.superseded
}

func TestScannerInstallsPasses(t *testing.T) {
	state := newTestState(t,
		WithPassConfig(shortScanConfig()),
		WithPropagatorFactory(func(model.TargetDefinition) core.Propagator {
			return archPropagator(testObserver, scanStart)
		}),
	)
	metrics := &recordingScanMetrics{}
	scanner := NewScanner(state, logging.Noop(),
		WithClock(timectrl.FixedClock{T: scanStart}),
		WithScanMetrics(metrics),
	)

	token := scanner.Rescan(context.Background())
	scanner.Wait()

	if got := state.CurrentScanToken(); got != token {
		t.Fatalf("scan token = %d, want %d", got, token)
	}
	passes, err := state.Passes("iss")
	if err != nil {
		t.Fatalf("Passes() error = %v", err)
	}
	if len(passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(passes))
	}
	if got := passes[0].MaxElDeg; math.Abs(got-52) > 1 {
		t.Fatalf("max elevation = %.2f, want about 52", got)
	}

	scans, samples, failures, superseded := metrics.counts()
	if scans != 1 {
		t.Fatalf("scan observations = %d, want 1", scans)
	}
	// 7 minutes at 30 s per sample: 15 grid points, all scripted.
	if samples != 15 {
		t.Fatalf("samples = %d, want 15", samples)
	}
	if failures != 0 {
		t.Fatalf("failures = %d, want 0", failures)
	}
	if superseded != 0 {
		t.Fatalf("superseded = %d, want 0", superseded)
	}
}

// gatedPropagator blocks its first Propagate call until released, so a
// test can hold one scan mid-flight while a newer one overtakes it.
type gatedPropagator struct {
	inner core.Propagator

	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPropagator) Propagate(t time.Time) (core.StateVector, error) {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.inner.Propagate(t)
}

func TestRelocationSupersedesInFlightScan(t *testing.T) {
	gate := &gatedPropagator{
		inner:   archPropagator(testObserver, scanStart),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	state := newTestState(t,
		WithPassConfig(shortScanConfig()),
		WithPropagatorFactory(func(model.TargetDefinition) core.Propagator { return gate }),
	)
	metrics := &recordingScanMetrics{}
	scanner := NewScanner(state, logging.Noop(),
		WithClock(timectrl.FixedClock{T: scanStart}),
		WithScanMetrics(metrics),
	)

	ctx := context.Background()
	scanner.Rescan(ctx)
	<-gate.started

	// Relocating mid-scan cancels the old request; the scripted track
	// sits below the new observer's horizon, so the winning scan finds
	// nothing.
	elsewhere := model.Observer{Latitude: 0, Longitude: -122.084}
	if err := state.SetObserver(ctx, elsewhere); err != nil {
		t.Fatalf("SetObserver() error = %v", err)
	}
	final := scanner.Rescan(ctx)
	close(gate.release)
	scanner.Wait()

	if got := state.CurrentScanToken(); got != final {
		t.Fatalf("scan token = %d, want winning token %d", got, final)
	}
	passes, err := state.Passes("iss")
	if err != nil {
		t.Fatalf("Passes() error = %v", err)
	}
	if len(passes) != 0 {
		t.Fatalf("stale scan results survived relocation: %d passes", len(passes))
	}

	scans, _, _, superseded := metrics.counts()
	if scans != 1 {
		t.Fatalf("completed scans = %d, want 1", scans)
	}
	if superseded != 1 {
		t.Fatalf("superseded scans = %d, want 1", superseded)
	}
}

func TestScannerPerTargetThresholdOverride(t *testing.T) {
	state := newTestState(t,
		WithPassConfig(shortScanConfig()),
		WithPropagatorFactory(func(model.TargetDefinition) core.Propagator {
			return archPropagator(testObserver, scanStart)
		}),
	)
	// A target that only counts passes peaking well above the arch.
	picky := issTarget()
	picky.ID = "picky"
	picky.MinElevationDeg = 60
	if err := state.Catalog().Add(picky); err != nil {
		t.Fatalf("catalog.Add() error = %v", err)
	}

	scanner := NewScanner(state, logging.Noop(), WithClock(timectrl.FixedClock{T: scanStart}))
	scanner.Rescan(context.Background())
	scanner.Wait()

	if passes, _ := state.Passes("iss"); len(passes) != 1 {
		t.Fatalf("default-threshold target passes = %d, want 1", len(passes))
	}
	if passes, _ := state.Passes("picky"); len(passes) != 0 {
		t.Fatalf("60-degree-threshold target passes = %d, want 0", len(passes))
	}
}

func TestScannerBindTriggersRescanOnCatalogChange(t *testing.T) {
	state := newTestState(t,
		WithPassConfig(shortScanConfig()),
		WithPropagatorFactory(func(model.TargetDefinition) core.Propagator {
			return archPropagator(testObserver, scanStart)
		}),
	)
	scanner := NewScanner(state, logging.Noop(), WithClock(timectrl.FixedClock{T: scanStart}))

	unbind := scanner.Bind(context.Background())
	defer unbind()

	if err := state.Catalog().UpdateElements("iss", issLine1Fresh, issLine2Fresh); err != nil {
		t.Fatalf("UpdateElements() error = %v", err)
	}
	scanner.Wait()

	if passes, _ := state.Passes("iss"); len(passes) != 1 {
		t.Fatalf("element refresh did not produce a rescan: %d passes", len(passes))
	}
}
