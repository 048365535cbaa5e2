// Package weather supplies cloud cover readings for visibility scoring.
// Readings are best-effort: a failed source degrades the rating to
// Unknown, it never fails the caller's pipeline.
package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

// ErrUnavailable indicates the cloud cover source could not produce a reading.
var ErrUnavailable = errors.New("cloud cover unavailable")

// Provider abstracts a cloud cover source (static value, HTTP forecast
// service, ...). Implementations return a percentage in [0,100] for
// the observer's location on the given UTC day.
type Provider interface {
	Name() string
	CloudCover(ctx context.Context, obs model.Observer, day time.Time) (float64, error)
}

// StaticProvider always reports the same cloud cover. Used for fixed
// configurations and tests.
type StaticProvider struct {
	Pct float64
}

// Name identifies the provider in logs.
func (StaticProvider) Name() string { return "static" }

// CloudCover returns the configured percentage.
func (p StaticProvider) CloudCover(ctx context.Context, obs model.Observer, day time.Time) (float64, error) {
	if p.Pct < 0 || p.Pct > 100 {
		return 0, fmt.Errorf("%w: configured cover %.1f%% out of range", ErrUnavailable, p.Pct)
	}
	return p.Pct, nil
}
