package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/kb"
	"github.com/signalsfoundry/skywatch/model"
	"github.com/signalsfoundry/skywatch/timectrl"
)

// ScanMetricsRecorder receives scan telemetry. Satisfied by
// observability.ScanCollector.
type ScanMetricsRecorder interface {
	ObserveScan(d time.Duration)
	AddSamples(n int)
	IncPropagationFailures()
	IncSuperseded()
}

// Scanner runs the full-horizon pass scan off the request path. Every
// trigger - boot, observer relocation, element refresh, periodic
// rescan - goes through Rescan, which claims a fresh token and hands
// the work to a goroutine. Whoever holds the newest token wins;
// results carrying an older token are dropped by CompleteScan.
type Scanner struct {
	state   *EngineState
	clock   timectrl.Clock
	log     logging.Logger
	metrics ScanMetricsRecorder

	wg sync.WaitGroup
}

// ScannerOption customises Scanner construction.
type ScannerOption func(*Scanner)

// WithScanMetrics attaches an optional scan telemetry recorder.
func WithScanMetrics(m ScanMetricsRecorder) ScannerOption {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// WithClock substitutes the scan clock, for tests.
func WithClock(clock timectrl.Clock) ScannerOption {
	return func(s *Scanner) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewScanner wires a scanner to the engine state.
func NewScanner(state *EngineState, log logging.Logger, opts ...ScannerOption) *Scanner {
	if log == nil {
		log = logging.Noop()
	}
	s := &Scanner{
		state: state,
		clock: timectrl.SystemClock{},
		log:   log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Bind subscribes the scanner to the triggers that invalidate pass
// lists: observer relocation and catalog changes. It returns an
// unbind function.
func (s *Scanner) Bind(ctx context.Context) (unbind func()) {
	unsubObs := s.state.Subscribe(func(model.Observer) {
		s.Rescan(ctx)
	})
	unsubCat := s.state.Catalog().Subscribe(func(kb.Event) {
		s.Rescan(ctx)
	})
	return func() {
		unsubObs()
		unsubCat()
	}
}

// Rescan claims a fresh scan token and starts the scan on a worker
// goroutine. The returned token identifies the request; callers only
// need it in tests. ctx bounds the whole scan in addition to the
// engine's own supersede cancellation.
func (s *Scanner) Rescan(ctx context.Context) uint64 {
	scanCtx, cancel := context.WithCancel(ctx)
	token := s.state.BeginScan(cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(scanCtx, token)
	}()
	return token
}

// Wait blocks until every scan goroutine started so far has returned.
// Test helper; the daemon relies on context cancellation instead.
func (s *Scanner) Wait() {
	s.wg.Wait()
}

// run executes one full scan for the token. The observer and target
// list are captured once at the start; a relocation mid-scan cancels
// scanCtx, so the stale capture never reaches the state.
func (s *Scanner) run(scanCtx context.Context, token uint64) {
	started := time.Now()
	obs := s.state.Observer()
	targets := s.state.Catalog().List()
	now := s.clock.Now()

	results := make(map[string][]model.Pass, len(targets))
	for _, target := range targets {
		prop := &countingPropagator{inner: s.state.propagatorFor(target)}

		predictor := core.NewPassPredictor(s.configFor(target))
		passes, err := predictor.Predict(scanCtx, obs, target.ID, prop, now)

		if s.metrics != nil {
			s.metrics.AddSamples(prop.samples)
			for i := 0; i < prop.failures; i++ {
				s.metrics.IncPropagationFailures()
			}
		}

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Superseded or shutting down; nothing to install.
				if s.metrics != nil {
					s.metrics.IncSuperseded()
				}
				s.log.Debug(scanCtx, "scan cancelled",
					logging.String("target_id", target.ID),
					logging.Any("token", token),
				)
				return
			}
			s.log.Warn(scanCtx, "scan failed for target",
				logging.String("target_id", target.ID),
				logging.String("error", err.Error()),
			)
			continue
		}
		results[target.ID] = passes
	}

	took := time.Since(started)
	if !s.state.CompleteScan(token, results) {
		if s.metrics != nil {
			s.metrics.IncSuperseded()
		}
		s.log.Debug(scanCtx, "scan results stale, discarded",
			logging.Any("token", token),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveScan(took)
	}
	total := 0
	for _, list := range results {
		total += len(list)
	}
	s.log.Info(scanCtx, "scan complete",
		logging.Int("targets", len(targets)),
		logging.Int("passes", total),
		logging.Duration("took", took),
	)
}

// configFor applies the target's per-target rise threshold override on
// top of the engine's scan configuration.
func (s *Scanner) configFor(target model.TargetDefinition) core.PassConfig {
	cfg := s.state.PassConfig()
	if target.MinElevationDeg > 0 {
		cfg.RiseElevationDeg = target.MinElevationDeg
	}
	return cfg
}

// countingPropagator tallies samples and failures for scan telemetry
// without touching the propagation result.
type countingPropagator struct {
	inner    core.Propagator
	samples  int
	failures int
}

func (c *countingPropagator) Propagate(t time.Time) (core.StateVector, error) {
	c.samples++
	sv, err := c.inner.Propagate(t)
	if err != nil {
		c.failures++
	}
	return sv, err
}
