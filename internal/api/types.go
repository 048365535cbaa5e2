package api

import (
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/engine"
	"github.com/signalsfoundry/skywatch/model"
)

// Wire shapes for the JSON API. Requests are unexported structs the
// handlers decode into; responses decorate the domain types with the
// derived fields renderers want (ratings, color keys, sky phrases).

type observerPayload struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

func observerFromPayload(p observerPayload) model.Observer {
	return model.Observer{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		AltitudeKm: p.AltitudeKm,
	}
}

func observerToPayload(o model.Observer) observerPayload {
	return observerPayload{
		Latitude:   o.Latitude,
		Longitude:  o.Longitude,
		AltitudeKm: o.AltitudeKm,
	}
}

type createTargetRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	NoradID         uint32  `json:"norad_id"`
	Line1           string  `json:"line1"`
	Line2           string  `json:"line2"`
	MinElevationDeg float64 `json:"min_elevation_deg"`
}

func (r createTargetRequest) toModel() model.TargetDefinition {
	return model.TargetDefinition{
		ID:              r.ID,
		Name:            r.Name,
		NoradID:         r.NoradID,
		Line1:           r.Line1,
		Line2:           r.Line2,
		MinElevationDeg: r.MinElevationDeg,
	}
}

type updateElementsRequest struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type targetResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	NoradID         uint32     `json:"norad_id,omitempty"`
	Line1           string     `json:"line1"`
	Line2           string     `json:"line2"`
	MinElevationDeg float64    `json:"min_elevation_deg,omitempty"`
	RefreshedAt     *time.Time `json:"refreshed_at,omitempty"`
}

func targetToResponse(t model.TargetDefinition) targetResponse {
	resp := targetResponse{
		ID:              t.ID,
		Name:            t.Name,
		NoradID:         t.NoradID,
		Line1:           t.Line1,
		Line2:           t.Line2,
		MinElevationDeg: t.MinElevationDeg,
	}
	if !t.RefreshedAt.IsZero() {
		refreshed := t.RefreshedAt
		resp.RefreshedAt = &refreshed
	}
	return resp
}

type targetListResponse struct {
	Targets []targetResponse `json:"targets"`
}

// passResponse is a pass decorated with its viewing rating. Duration
// is rendered in seconds; the raw nanosecond field stays internal.
type passResponse struct {
	TargetID string `json:"target_id"`

	RiseTime  time.Time `json:"rise_time"`
	RiseAzDeg float64   `json:"rise_az_deg"`
	RiseWind  string    `json:"rise_compass"`

	MaxElTime  time.Time `json:"max_el_time"`
	MaxElDeg   float64   `json:"max_el_deg"`
	MaxElAzDeg float64   `json:"max_el_az_deg"`

	SetTime   time.Time `json:"set_time"`
	SetAzDeg  float64   `json:"set_az_deg"`
	SetWind   string    `json:"set_compass"`
	DurationS float64   `json:"duration_s"`

	Rating   model.Rating      `json:"rating"`
	ColorKey string            `json:"color_key"`
	Points   []model.LookAngle `json:"points,omitempty"`
}

func passToResponse(p model.Pass, rating model.Rating, includePoints bool) passResponse {
	resp := passResponse{
		TargetID:   p.TargetID,
		RiseTime:   p.RiseTime,
		RiseAzDeg:  p.RiseAzDeg,
		RiseWind:   core.CompassPoint(p.RiseAzDeg),
		MaxElTime:  p.MaxElTime,
		MaxElDeg:   p.MaxElDeg,
		MaxElAzDeg: p.MaxElAzDeg,
		SetTime:    p.SetTime,
		SetAzDeg:   p.SetAzDeg,
		SetWind:    core.CompassPoint(p.SetAzDeg),
		DurationS:  p.Duration.Seconds(),
		Rating:     rating,
		ColorKey:   rating.ColorKey(),
	}
	if includePoints {
		resp.Points = p.Points
	}
	return resp
}

type passListResponse struct {
	TargetID string          `json:"target_id"`
	Observer observerPayload `json:"observer"`
	Passes   []passResponse  `json:"passes"`
}

// nextPassResponse distinguishes "no upcoming pass" from an error:
// an empty horizon is a normal answer, not a failure.
type nextPassResponse struct {
	Found bool          `json:"found"`
	Pass  *passResponse `json:"pass,omitempty"`
}

type lookResponse struct {
	TargetID string             `json:"target_id"`
	Look     model.LookAngle    `json:"look"`
	Point    model.GeoPoint     `json:"point"`
	Sunlit   model.SunlitStatus `json:"sunlit"`
	SkyHint  string             `json:"sky_hint"`
	Visible  bool               `json:"visible"`
}

func lookToResponse(ls engine.LiveState) lookResponse {
	return lookResponse{
		TargetID: ls.TargetID,
		Look:     ls.Look,
		Point:    ls.Point,
		Sunlit:   ls.Sunlit,
		SkyHint:  ls.SkyHint,
		Visible:  ls.Visible,
	}
}

type skyRatingResponse struct {
	Rating        model.Rating `json:"rating"`
	ColorKey      string       `json:"color_key"`
	CloudCoverPct *float64     `json:"cloud_cover_pct,omitempty"`
	Dark          bool         `json:"dark"`
	SunAltDeg     float64      `json:"sun_altitude_deg"`
}

type projectionResponse struct {
	Visible bool                  `json:"visible"`
	Point   *model.ProjectedPoint `json:"point,omitempty"`
}

func projectionToResponse(pt model.ProjectedPoint, visible bool) projectionResponse {
	resp := projectionResponse{Visible: visible}
	if visible {
		resp.Point = &pt
	}
	return resp
}
