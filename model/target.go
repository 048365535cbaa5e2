package model

import "time"

// TargetDefinition describes a tracked orbiting object and the orbital
// element set used to propagate it.
type TargetDefinition struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	NoradID uint32 `json:"norad_id,omitempty"`

	// Line1 and Line2 are the two-line element set. They are refreshed
	// independently of the rest of the definition.
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`

	// MinElevationDeg optionally overrides the scan's rise threshold
	// for this target. Zero means "use the configured default".
	MinElevationDeg float64 `json:"min_elevation_deg,omitempty"`

	// RefreshedAt is when the element set was last replaced.
	RefreshedAt time.Time `json:"refreshed_at,omitempty"`
}
