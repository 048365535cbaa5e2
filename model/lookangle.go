package model

import "time"

// LookAngle is the observer-relative direction and distance to a body
// at a single instant. Azimuth is degrees clockwise from true north in
// [0, 360); elevation is degrees above the horizon in [-90, 90]; range
// is the slant distance in kilometres.
type LookAngle struct {
	Time         time.Time `json:"time"`
	AzimuthDeg   float64   `json:"azimuth_deg"`
	ElevationDeg float64   `json:"elevation_deg"`
	RangeKm      float64   `json:"range_km"`
}
