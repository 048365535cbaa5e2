package model

import (
	"errors"
	"fmt"
)

// ErrInvalidObserver indicates observer coordinates failed validation.
// Callers must reject the update without mutating any state.
var ErrInvalidObserver = errors.New("invalid observer")

// Observer is the ground location all look angles are computed for.
// Altitude is in kilometres above the mean Earth radius.
type Observer struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

// Validate checks the coordinate invariants: |lat| <= 90, |lon| <= 180,
// altitude >= 0.
func (o Observer) Validate() error {
	if o.Latitude < -90 || o.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.4f out of range [-90, 90]", ErrInvalidObserver, o.Latitude)
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.4f out of range [-180, 180]", ErrInvalidObserver, o.Longitude)
	}
	if o.AltitudeKm < 0 {
		return fmt.Errorf("%w: altitude %.4f km below sea level", ErrInvalidObserver, o.AltitudeKm)
	}
	return nil
}

// Point returns the observer location as a GeoPoint.
func (o Observer) Point() GeoPoint {
	return GeoPoint{LatDeg: o.Latitude, LonDeg: o.Longitude, AltKm: o.AltitudeKm}
}
