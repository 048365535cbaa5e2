package model

// ProjectionMode identifies which 2D sky projection produced a point.
type ProjectionMode string

const (
	// ProjectionPolar is the radar-style all-sky view: zenith at the
	// centre, horizon at the ring edge.
	ProjectionPolar ProjectionMode = "polar"
	// ProjectionPanorama is the cylindrical horizon view covering a
	// configured azimuth window.
	ProjectionPanorama ProjectionMode = "panorama"
)

// ProjectedPoint is a 2D render coordinate. It is a pure rendering
// artifact and is never retained as domain state.
type ProjectedPoint struct {
	X    float64        `json:"x"`
	Y    float64        `json:"y"`
	Mode ProjectionMode `json:"mode"`
}
