package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/engine"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/internal/weather"
	"github.com/signalsfoundry/skywatch/kb"
	"github.com/signalsfoundry/skywatch/model"
	"github.com/signalsfoundry/skywatch/timectrl"
)

var testObserver = model.Observer{Latitude: 37.386, Longitude: -122.084, AltitudeKm: 0.04}

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"

	issLine1Fresh = "1 25544U 98067A   21276.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2Fresh = "2 25544  51.6459 116.9059 0001817  61.3028  35.9198 15.49370953257760"
)

// testTime sits mid-pass in the fixture below: 01:03 local at the
// observer, well after dusk.
var testTime = time.Date(2025, 1, 15, 9, 3, 0, 0, time.UTC)

// overheadFactory scripts the target as hovering just north of the
// observer's zenith for the whole test window.
func overheadFactory(model.TargetDefinition) core.Propagator {
	point := model.GeoPoint{LatDeg: testObserver.Latitude + 0.1, LonDeg: testObserver.Longitude, AltKm: 500}
	return core.NewScriptedPropagator([]core.ScriptedSample{
		{Time: testTime.Add(-15 * time.Minute), Point: point},
		{Time: testTime.Add(15 * time.Minute), Point: point},
	})
}

// fixturePass is a canned six-minute pass peaking at 45 degrees.
func fixturePass() model.Pass {
	rise := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	els := []float64{0, 15, 30, 45, 30, 15, 0}
	points := make([]model.LookAngle, len(els))
	for i, el := range els {
		points[i] = model.LookAngle{
			Time:         rise.Add(time.Duration(i) * time.Minute),
			AzimuthDeg:   40 + 10*float64(i),
			ElevationDeg: el,
			RangeKm:      1200 - 100*math.Min(float64(i), float64(len(els)-1-i)),
		}
	}
	return model.Pass{
		TargetID:   "iss",
		RiseTime:   rise,
		RiseAzDeg:  40,
		MaxElTime:  rise.Add(3 * time.Minute),
		MaxElDeg:   45,
		MaxElAzDeg: 70,
		SetTime:    rise.Add(6 * time.Minute),
		SetAzDeg:   100,
		Duration:   6 * time.Minute,
		Points:     points,
	}
}

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *engine.EngineState) {
	t.Helper()
	catalog := kb.NewTargetCatalog()
	if err := catalog.Add(model.TargetDefinition{ID: "iss", Name: "ISS", Line1: issLine1, Line2: issLine2}); err != nil {
		t.Fatalf("catalog.Add() error = %v", err)
	}
	state, err := engine.NewEngineState(testObserver, catalog, logging.Noop(),
		engine.WithPropagatorFactory(overheadFactory))
	if err != nil {
		t.Fatalf("NewEngineState() error = %v", err)
	}
	token := state.BeginScan(nil)
	if !state.CompleteScan(token, map[string][]model.Pass{"iss": {fixturePass()}}) {
		t.Fatalf("CompleteScan() rejected the fixture")
	}

	base := []ServerOption{
		WithClock(timectrl.FixedClock{T: testTime}),
		WithWeather(weather.StaticProvider{Pct: 20}),
	}
	srv := NewServer(state, logging.Noop(), append(base, opts...)...)
	return srv, state
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:51234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeAs[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", w.Code)
	}
}

func TestObserverRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doRequest(t, h, http.MethodGet, "/v1/observer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/observer = %d, want 200", w.Code)
	}
	got := decodeAs[observerPayload](t, w)
	if got.Latitude != testObserver.Latitude || got.Longitude != testObserver.Longitude {
		t.Fatalf("observer = %+v, want %+v", got, testObserver)
	}

	moved := observerPayload{Latitude: 51.477, Longitude: 0, AltitudeKm: 0.02}
	w = doRequest(t, h, http.MethodPut, "/v1/observer", moved)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /v1/observer = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	w = doRequest(t, h, http.MethodGet, "/v1/observer", nil)
	if got := decodeAs[observerPayload](t, w); got != moved {
		t.Fatalf("observer after move = %+v, want %+v", got, moved)
	}
}

func TestObserverRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doRequest(t, h, http.MethodPut, "/v1/observer", observerPayload{Latitude: 95})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("PUT invalid observer = %d, want 400", w.Code)
	}
	env := decodeAs[errorEnvelope](t, w)
	if env.Error.Status != http.StatusBadRequest || env.Error.Message == "" {
		t.Fatalf("error envelope = %+v", env)
	}

	// Original site untouched after the rejection.
	w = doRequest(t, h, http.MethodGet, "/v1/observer", nil)
	if got := decodeAs[observerPayload](t, w); got.Latitude != testObserver.Latitude {
		t.Fatalf("observer mutated by rejected update: %+v", got)
	}
}

func TestObserverRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPut, "/v1/observer", bytes.NewReader([]byte(`{"latitude": `)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body = %d, want 400", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/v1/observer", bytes.NewReader([]byte(`{"lattitude": 10}`)))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field = %d, want 400", w.Code)
	}
}

func TestTargetLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	created := doRequest(t, h, http.MethodPost, "/v1/targets", createTargetRequest{
		ID:    "hubble",
		Name:  "HST",
		Line1: issLine1,
		Line2: issLine2,
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("POST /v1/targets = %d, want 201 (body %s)", created.Code, created.Body.String())
	}
	// Catalog number lifted from the elements when the client omits it.
	if got := decodeAs[targetResponse](t, created); got.NoradID != 25544 {
		t.Fatalf("created norad_id = %d, want 25544", got.NoradID)
	}

	list := decodeAs[targetListResponse](t, doRequest(t, h, http.MethodGet, "/v1/targets", nil))
	if len(list.Targets) != 2 {
		t.Fatalf("target count = %d, want 2", len(list.Targets))
	}

	w := doRequest(t, h, http.MethodPut, "/v1/targets/hubble/elements", updateElementsRequest{
		Line1: issLine1Fresh,
		Line2: issLine2Fresh,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT elements = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	updated := decodeAs[targetResponse](t, w)
	if updated.Line1 != issLine1Fresh {
		t.Fatalf("line1 not refreshed: %q", updated.Line1)
	}
	if updated.RefreshedAt == nil {
		t.Fatalf("refreshed_at missing after element update")
	}

	if w := doRequest(t, h, http.MethodDelete, "/v1/targets/hubble", nil); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/v1/targets/hubble", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET deleted target = %d, want 404", w.Code)
	}
}

func TestCreateTargetErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	dup := doRequest(t, h, http.MethodPost, "/v1/targets", createTargetRequest{
		ID: "iss", Line1: issLine1, Line2: issLine2,
	})
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate target = %d, want 409", dup.Code)
	}

	bad := doRequest(t, h, http.MethodPost, "/v1/targets", createTargetRequest{
		ID: "junk", Line1: "not an element set", Line2: issLine2,
	})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("invalid elements = %d, want 400", bad.Code)
	}
}

func TestListPasses(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doRequest(t, h, http.MethodGet, "/v1/passes?target=iss", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/passes = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	resp := decodeAs[passListResponse](t, w)
	if len(resp.Passes) != 1 {
		t.Fatalf("pass count = %d, want 1", len(resp.Passes))
	}
	p := resp.Passes[0]
	// 45 degree peak under a 20%% sky grades Excellent.
	if p.Rating != model.RatingExcellent || p.ColorKey != "green" {
		t.Fatalf("rating = %s/%s, want Excellent/green", p.Rating, p.ColorKey)
	}
	if p.RiseWind != "NE" {
		t.Fatalf("rise compass = %q, want NE (az 40)", p.RiseWind)
	}
	if p.DurationS != 360 {
		t.Fatalf("duration_s = %v, want 360", p.DurationS)
	}
	if len(p.Points) != 0 {
		t.Fatalf("points included by default: %d", len(p.Points))
	}

	w = doRequest(t, h, http.MethodGet, "/v1/passes?target=iss&points=true", nil)
	resp = decodeAs[passListResponse](t, w)
	if len(resp.Passes[0].Points) != 7 {
		t.Fatalf("points = %d, want 7", len(resp.Passes[0].Points))
	}
}

func TestListPassesParamErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	cases := []struct {
		name string
		path string
		want int
	}{
		{"missing target", "/v1/passes", http.StatusBadRequest},
		{"unknown target", "/v1/passes?target=nope", http.StatusNotFound},
		{"bad points flag", "/v1/passes?target=iss&points=sideways", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doRequest(t, h, http.MethodGet, tc.path, nil); w.Code != tc.want {
				t.Fatalf("GET %s = %d, want %d", tc.path, w.Code, tc.want)
			}
		})
	}
}

func TestNextPass(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv.Handler(), http.MethodGet, "/v1/passes/next?target=iss", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/passes/next = %d, want 200", w.Code)
	}
	resp := decodeAs[nextPassResponse](t, w)
	if !resp.Found || resp.Pass == nil {
		t.Fatalf("next pass not found at %s", testTime)
	}
	if resp.Pass.MaxElDeg != 45 {
		t.Fatalf("next pass max el = %v, want 45", resp.Pass.MaxElDeg)
	}

	// A clock past the set time sees an empty horizon.
	late, _ := newTestServer(t, WithClock(timectrl.FixedClock{T: testTime.Add(2 * time.Hour)}))
	w = doRequest(t, late.Handler(), http.MethodGet, "/v1/passes/next?target=iss", nil)
	resp = decodeAs[nextPassResponse](t, w)
	if resp.Found || resp.Pass != nil {
		t.Fatalf("next pass found after horizon: %+v", resp)
	}
}

func TestLook(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doRequest(t, h, http.MethodGet, "/v1/look?target=iss", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/look = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	resp := decodeAs[lookResponse](t, w)
	if resp.TargetID != "iss" {
		t.Fatalf("target_id = %q", resp.TargetID)
	}
	if resp.Look.ElevationDeg < 85 {
		t.Fatalf("elevation = %v, want near zenith", resp.Look.ElevationDeg)
	}
	if !resp.Visible {
		t.Fatalf("target above horizon reported not visible")
	}
	if resp.SkyHint != "directly overhead" {
		t.Fatalf("sky_hint = %q, want directly overhead", resp.SkyHint)
	}

	if w := doRequest(t, h, http.MethodGet, "/v1/look?target=iss&at=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad at param = %d, want 400", w.Code)
	}

	// Outside the scripted window the propagator has no solution.
	at := testTime.Add(26 * time.Hour).Format(time.RFC3339)
	if w := doRequest(t, h, http.MethodGet, "/v1/look?target=iss&at="+at, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("look outside ephemeris window = %d, want 503", w.Code)
	}
}

func TestSkyRating(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv.Handler(), http.MethodGet, "/v1/sky/rating", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/sky/rating = %d, want 200", w.Code)
	}
	resp := decodeAs[skyRatingResponse](t, w)
	if resp.Rating != model.RatingExcellent {
		t.Fatalf("rating = %s, want Excellent at 20%% cover", resp.Rating)
	}
	if resp.CloudCoverPct == nil || *resp.CloudCoverPct != 20 {
		t.Fatalf("cloud_cover_pct = %v, want 20", resp.CloudCoverPct)
	}
	if !resp.Dark {
		t.Fatalf("01:03 local reported not dark (sun at %v)", resp.SunAltDeg)
	}
}

type failingWeather struct{}

func (failingWeather) Name() string { return "failing" }
func (failingWeather) CloudCover(ctx context.Context, obs model.Observer, day time.Time) (float64, error) {
	return 0, weather.ErrUnavailable
}

func TestSkyRatingDegradesWithoutWeather(t *testing.T) {
	srv, _ := newTestServer(t, WithWeather(failingWeather{}))
	w := doRequest(t, srv.Handler(), http.MethodGet, "/v1/sky/rating", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/sky/rating = %d, want 200", w.Code)
	}
	resp := decodeAs[skyRatingResponse](t, w)
	if resp.Rating != model.RatingUnknown || resp.ColorKey != "gray" {
		t.Fatalf("rating = %s/%s, want Unknown/gray", resp.Rating, resp.ColorKey)
	}
	if resp.CloudCoverPct != nil {
		t.Fatalf("cloud_cover_pct = %v, want null", *resp.CloudCoverPct)
	}
}

func TestProjectPolar(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doRequest(t, h, http.MethodGet, "/v1/project/polar?az=180&el=45&radius=100", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/project/polar = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	resp := decodeAs[projectionResponse](t, w)
	if !resp.Visible || resp.Point == nil {
		t.Fatalf("point at el 45 not visible: %+v", resp)
	}
	if math.Abs(resp.Point.X-100) > 1e-9 || math.Abs(resp.Point.Y-150) > 1e-9 {
		t.Fatalf("projected = (%v, %v), want (100, 150)", resp.Point.X, resp.Point.Y)
	}
	if resp.Point.Mode != model.ProjectionPolar {
		t.Fatalf("mode = %q", resp.Point.Mode)
	}

	w = doRequest(t, h, http.MethodGet, "/v1/project/polar?az=10&el=-4&radius=100", nil)
	resp = decodeAs[projectionResponse](t, w)
	if resp.Visible || resp.Point != nil {
		t.Fatalf("below-horizon point projected: %+v", resp)
	}

	if w := doRequest(t, h, http.MethodGet, "/v1/project/polar?az=10&el=120", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("el out of range = %d, want 400", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/v1/project/polar?el=45", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing az = %d, want 400", w.Code)
	}
}

func TestProjectPanorama(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doRequest(t, h, http.MethodGet, "/v1/project/panorama?az=90&el=30&width=360&height=90", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/project/panorama = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	resp := decodeAs[projectionResponse](t, w)
	if !resp.Visible || resp.Point == nil {
		t.Fatalf("point not visible: %+v", resp)
	}
	if math.Abs(resp.Point.X-90) > 1e-9 || math.Abs(resp.Point.Y-60) > 1e-9 {
		t.Fatalf("projected = (%v, %v), want (90, 60)", resp.Point.X, resp.Point.Y)
	}

	// Azimuth outside a wrapped window is hidden.
	w = doRequest(t, h, http.MethodGet, "/v1/project/panorama?az=180&el=30&az_min=300&az_max=60", nil)
	resp = decodeAs[projectionResponse](t, w)
	if resp.Visible {
		t.Fatalf("point outside window projected: %+v", resp)
	}

	if w := doRequest(t, h, http.MethodGet, "/v1/project/panorama?az=90&el=30&el_max=0", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("el_max=0 = %d, want 400", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv.Handler(), http.MethodPost, "/v1/observer", observerPayload{})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /v1/observer = %d, want 405", w.Code)
	}
}

func TestRequestIDEcho(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", got)
	}

	w = doRequest(t, h, http.MethodGet, "/healthz", nil)
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("no generated request id on response")
	}
}
