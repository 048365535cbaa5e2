package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock is the time source handed to components that must be testable
// without waiting for the wall clock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// task is one registered periodic job.
type task struct {
	name     string
	interval time.Duration
	fn       func(context.Context, time.Time)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTaskObserver installs a callback invoked after every task run
// with the task name and how long the run took. Used to feed metrics.
func WithTaskObserver(fn func(name string, took time.Duration)) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// Scheduler runs named periodic tasks, one goroutine per task, until
// its context is canceled.
type Scheduler struct {
	clock    Clock
	observer func(string, time.Duration)

	mu    sync.Mutex
	tasks []task
}

// NewScheduler constructs a scheduler on the given clock.
func NewScheduler(clock Clock, opts ...Option) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Scheduler{clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every registers fn to run at the given interval. The first run
// happens one interval after Run starts, not immediately.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context, time.Time)) error {
	if interval <= 0 {
		return fmt.Errorf("task %q: interval must be positive, got %v", name, interval)
	}
	if fn == nil {
		return fmt.Errorf("task %q: nil function", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{name: name, interval: interval, fn: fn})
	return nil
}

// Run starts all registered tasks and blocks until ctx is canceled and
// every in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]task(nil), s.tasks...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()

			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					started := time.Now()
					t.fn(ctx, s.clock.Now())
					if s.observer != nil {
						s.observer(t.name, time.Since(started))
					}
				}
			}
		}(t)
	}
	wg.Wait()
}

// Player advances a virtual clock from Start to End at Speed times
// real time, invoking the listener at every Step of virtual time. The
// final emission lands exactly on End.
type Player struct {
	Start time.Time
	End   time.Time
	// Speed is virtual seconds per wall second. Zero or negative means 1.
	Speed float64
	// Step is the virtual time between emissions. Zero or negative
	// means one second.
	Step time.Duration
}

// Run plays the window through fn. It returns ctx.Err() when canceled
// mid-playback and nil once End has been emitted.
func (p Player) Run(ctx context.Context, fn func(time.Time)) error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("playback window ends %v before it starts %v", p.End, p.Start)
	}
	speed := p.Speed
	if speed <= 0 {
		speed = 1
	}
	step := p.Step
	if step <= 0 {
		step = time.Second
	}

	wallStep := time.Duration(float64(step) / speed)
	// NewTicker panics at zero; extreme speeds floor at a millisecond
	// of wall time per frame.
	if wallStep < time.Millisecond {
		wallStep = time.Millisecond
	}
	ticker := time.NewTicker(wallStep)
	defer ticker.Stop()

	cursor := p.Start
	fn(cursor)
	for cursor.Before(p.End) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cursor = cursor.Add(step)
		if cursor.After(p.End) {
			cursor = p.End
		}
		fn(cursor)
	}
	return nil
}
