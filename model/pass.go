package model

import "time"

// Pass is a contiguous interval during which a target's elevation stays
// at or above the rise threshold.
//
// Invariants: RiseTime < MaxElTime <= SetTime (the peak may coincide
// with the set sample when the profile is flat); Duration is
// SetTime - RiseTime; every point in Points has elevation >= the
// threshold the pass was segmented with. Passes are immutable once
// finalized: an observer change or rescan replaces the whole list.
type Pass struct {
	TargetID string `json:"target_id"`

	RiseTime  time.Time `json:"rise_time"`
	RiseAzDeg float64   `json:"rise_az_deg"`

	MaxElTime  time.Time `json:"max_el_time"`
	MaxElDeg   float64   `json:"max_el_deg"`
	MaxElAzDeg float64   `json:"max_el_az_deg"`

	SetTime  time.Time     `json:"set_time"`
	SetAzDeg float64       `json:"set_az_deg"`
	Duration time.Duration `json:"duration_ns"`

	// Points is the ordered sequence of sampled look angles between
	// rise and set, at the scan step resolution.
	Points []LookAngle `json:"points"`
}
