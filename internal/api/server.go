// Package api exposes the tracking engine over HTTP. It serves JSON
// endpoints for observer and catalog management, pass and look-angle
// queries, sky condition ratings and chart projections, plus streaming
// feeds (server-sent events and WebSocket) for live tracking clients.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/engine"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/internal/observability"
	"github.com/signalsfoundry/skywatch/internal/weather"
	"github.com/signalsfoundry/skywatch/kb"
	"github.com/signalsfoundry/skywatch/model"
	"github.com/signalsfoundry/skywatch/timectrl"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultStreamInterval  = 2 * time.Second
	defaultStreamKeepalive = 15 * time.Second
)

// Server holds the handler dependencies. Construct it with NewServer
// and mount Handler on an http.Server.
type Server struct {
	state   *engine.EngineState
	weather weather.Provider
	clock   timectrl.Clock
	log     logging.Logger
	metrics *observability.APICollector
	limiter *IPRateLimiter

	streamInterval  time.Duration
	streamKeepalive time.Duration
}

// ServerOption configures optional Server collaborators.
type ServerOption func(*Server)

// WithWeather installs the cloud cover provider used by pass ratings
// and the sky report. Without one, ratings treat cover as unknown.
func WithWeather(p weather.Provider) ServerOption {
	return func(s *Server) { s.weather = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(c timectrl.Clock) ServerOption {
	return func(s *Server) { s.clock = c }
}

// WithAPIMetrics installs the request collector. Without one the
// metrics middleware is skipped.
func WithAPIMetrics(c *observability.APICollector) ServerOption {
	return func(s *Server) { s.metrics = c }
}

// WithStreamInterval sets the cadence of live stream updates.
func WithStreamInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// WithStreamKeepalive sets the idle keepalive cadence on event streams.
func WithStreamKeepalive(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.streamKeepalive = d
		}
	}
}

// WithStreamLimiter replaces the per-client limiter gating new streams.
func WithStreamLimiter(l *IPRateLimiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

// NewServer wires a Server around the shared engine state.
func NewServer(state *engine.EngineState, log logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		state:           state,
		clock:           timectrl.SystemClock{},
		log:             log,
		limiter:         NewIPRateLimiter(defaultStreamRate, defaultStreamBurst),
		streamInterval:  defaultStreamInterval,
		streamKeepalive: defaultStreamKeepalive,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routing table and wraps it in the middleware
// chain. Route patterns carry the method so the mux rejects mismatched
// verbs with 405 on its own.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /v1/observer", s.handleGetObserver)
	mux.HandleFunc("PUT /v1/observer", s.handlePutObserver)

	mux.HandleFunc("GET /v1/targets", s.handleListTargets)
	mux.HandleFunc("POST /v1/targets", s.handleCreateTarget)
	mux.HandleFunc("GET /v1/targets/{id}", s.handleGetTarget)
	mux.HandleFunc("PUT /v1/targets/{id}/elements", s.handleUpdateElements)
	mux.HandleFunc("DELETE /v1/targets/{id}", s.handleDeleteTarget)

	mux.HandleFunc("GET /v1/passes", s.handleListPasses)
	mux.HandleFunc("GET /v1/passes/next", s.handleNextPass)
	mux.HandleFunc("GET /v1/look", s.handleLook)
	mux.HandleFunc("GET /v1/sky/rating", s.handleSkyRating)

	mux.HandleFunc("GET /v1/project/polar", s.handleProjectPolar)
	mux.HandleFunc("GET /v1/project/panorama", s.handleProjectPanorama)

	mux.HandleFunc("GET /v1/stream/look", s.handleStreamLook)
	mux.HandleFunc("GET /v1/stream/playback", s.handleStreamPlayback)
	mux.HandleFunc("GET /v1/ws/look", s.handleWSLook)

	mws := []Middleware{RequestIDMiddleware(s.log), AccessLogMiddleware(s.log)}
	if s.metrics != nil {
		mws = append(mws, MetricsMiddleware(s.metrics))
	}
	mws = append(mws, TracingMiddleware())
	return Chain(mux, mws...)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetObserver(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, observerToPayload(s.state.Observer()))
}

func (s *Server) handlePutObserver(w http.ResponseWriter, r *http.Request) {
	var payload observerPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := s.state.SetObserver(r.Context(), observerFromPayload(payload)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, observerToPayload(s.state.Observer()))
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets := s.state.Catalog().List()
	resp := targetListResponse{Targets: make([]targetResponse, 0, len(targets))}
	for _, t := range targets {
		resp.Targets = append(resp.Targets, targetToResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var req createTargetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := req.toModel()
	if t.NoradID == 0 {
		// Convenience: lift the catalog number out of the elements so
		// clients do not have to repeat it.
		if num, err := kb.CatalogNumber(t.Line1); err == nil {
			t.NoradID = num
		}
	}
	if err := s.state.Catalog().Add(t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, targetToResponse(t))
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.state.Catalog().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targetToResponse(t))
}

func (s *Server) handleUpdateElements(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateElementsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.state.Catalog().UpdateElements(id, req.Line1, req.Line2); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.state.Catalog().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targetToResponse(t))
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Catalog().Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPasses(w http.ResponseWriter, r *http.Request) {
	targetID, err := requiredTargetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	includePoints, err := boolParam(r, "points", false)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, span := StartChildSpan(r.Context(), "ListPasses", targetID)
	defer span.End()

	passes, err := s.state.Passes(targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	cover := s.cloudCover(ctx)
	span.SetAttributes(attribute.Int("passes.count", len(passes)))

	resp := passListResponse{
		TargetID: targetID,
		Observer: observerToPayload(s.state.Observer()),
		Passes:   make([]passResponse, 0, len(passes)),
	}
	for _, p := range passes {
		resp.Passes = append(resp.Passes, passToResponse(p, core.PassRating(p, cover), includePoints))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNextPass(w http.ResponseWriter, r *http.Request) {
	targetID, err := requiredTargetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, span := StartChildSpan(r.Context(), "NextPass", targetID)
	defer span.End()

	pass, found, err := s.state.NextPass(targetID, s.clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := nextPassResponse{Found: found}
	if found {
		pr := passToResponse(pass, core.PassRating(pass, s.cloudCover(ctx)), false)
		resp.Pass = &pr
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLook(w http.ResponseWriter, r *http.Request) {
	targetID, err := requiredTargetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	at, err := timeParam(r, "at", s.clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	_, span := StartChildSpan(r.Context(), "ComputeLook", targetID)
	defer span.End()

	ls, err := s.state.ComputeLook(targetID, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lookToResponse(ls))
}

func (s *Server) handleSkyRating(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	obs := s.state.Observer()
	cover := s.cloudCover(r.Context())

	rating := core.OverallRating(cover)
	resp := skyRatingResponse{
		Rating:        rating,
		ColorKey:      rating.ColorKey(),
		CloudCoverPct: cover,
		Dark:          core.IsDarkEnough(now, obs),
		SunAltDeg:     core.SunAltitude(now, obs.Latitude, obs.Longitude),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProjectPolar(w http.ResponseWriter, r *http.Request) {
	az, el, err := lookAngleParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plot, err := polarPlotParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pt, ok := plot.Project(model.LookAngle{AzimuthDeg: az, ElevationDeg: el})
	writeJSON(w, http.StatusOK, projectionToResponse(pt, ok))
}

func (s *Server) handleProjectPanorama(w http.ResponseWriter, r *http.Request) {
	az, el, err := lookAngleParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plot, err := panoramaPlotParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pt, ok := plot.Project(model.LookAngle{AzimuthDeg: az, ElevationDeg: el})
	writeJSON(w, http.StatusOK, projectionToResponse(pt, ok))
}

// cloudCover asks the weather provider for today's cover at the current
// site. A missing provider or a lookup failure degrades to nil, which
// the scorers read as "cover unknown".
func (s *Server) cloudCover(ctx context.Context) *float64 {
	if s.weather == nil {
		return nil
	}
	pct, err := s.weather.CloudCover(ctx, s.state.Observer(), s.clock.Now())
	if err != nil {
		s.log.Debug(ctx, "cloud cover unavailable", logging.String("error", err.Error()))
		return nil
	}
	return &pct
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", ErrInvalidRequest, err)
	}
	return nil
}
