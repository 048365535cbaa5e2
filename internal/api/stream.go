package api

// Server-sent event feeds. /v1/stream/look pushes live look angles for
// one target at the stream interval; /v1/stream/playback replays a
// predicted pass at an accelerated clock. Both emit keepalive comments
// so idle proxies do not drop the connection, and both stop as soon as
// the client goes away.
//
// Message format, one event per frame:
//
//	event: look
//	data: {"target_id":"iss","look":{...},"visible":true,...}
//
// Playback feeds end with an explicit "done" event so clients can tell
// a finished replay from a dropped connection.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/internal/engine"
	"github.com/signalsfoundry/skywatch/internal/logging"
	"github.com/signalsfoundry/skywatch/model"
)

// sseConn wraps a response writer prepared for event streaming.
type sseConn struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// openSSE switches the response into event-stream mode. It returns nil
// and writes an error response if the transport cannot stream.
func openSSE(w http.ResponseWriter, r *http.Request) *sseConn {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("%w: transport does not support streaming", ErrInvalidRequest))
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived response: lift the server's write deadline so slow
	// keepalive gaps do not kill the stream.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	return &sseConn{w: w, flusher: flusher}
}

func (c *sseConn) sendEvent(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *sseConn) sendKeepalive() error {
	if _, err := fmt.Fprint(c.w, ": keepalive\n\n"); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// acquireStream applies the per-client stream limit and registers the
// connection with the metrics collector. The returned release func is
// nil when the client is over its budget, in which case a 429 has
// already been written.
func (s *Server) acquireStream(w http.ResponseWriter, r *http.Request) (release func(), ok bool) {
	ip := clientIP(r)
	if s.limiter != nil && !s.limiter.Allow(ip) {
		s.log.Warn(r.Context(), "stream limit exceeded", logging.String("remote_ip", ip))
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Error: errorBody{
			Status:  http.StatusTooManyRequests,
			Message: "too many streams, retry later",
		}})
		return nil, false
	}
	if s.metrics != nil {
		s.metrics.StreamOpened()
		return s.metrics.StreamClosed, true
	}
	return func() {}, true
}

// handleStreamLook serves GET /v1/stream/look?target=ID.
func (s *Server) handleStreamLook(w http.ResponseWriter, r *http.Request) {
	targetID, err := requiredTargetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	interval, err := floatParam(r, "interval_s", s.streamInterval.Seconds())
	if err != nil {
		writeError(w, err)
		return
	}
	if interval < 0.1 {
		writeError(w, fmt.Errorf("%w: interval_s must be at least 0.1", ErrInvalidRequest))
		return
	}

	// Reject unknown targets before committing to the stream.
	if _, err := s.state.Catalog().Get(targetID); err != nil {
		writeError(w, err)
		return
	}

	release, ok := s.acquireStream(w, r)
	if !ok {
		return
	}
	defer release()

	conn := openSSE(w, r)
	if conn == nil {
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()
	keepalive := time.NewTicker(s.streamKeepalive)
	defer keepalive.Stop()

	// First frame immediately so clients do not wait a full interval.
	if !s.emitLook(ctx, conn, targetID) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.emitLook(ctx, conn, targetID) {
				return
			}
			keepalive.Reset(s.streamKeepalive)
		case <-keepalive.C:
			if err := conn.sendKeepalive(); err != nil {
				return
			}
		}
	}
}

// emitLook computes and sends one live frame. It reports whether the
// stream should continue: a vanished target or a dead client ends it,
// a transient propagation failure only skips the frame.
func (s *Server) emitLook(ctx context.Context, conn *sseConn, targetID string) bool {
	ls, err := s.state.ComputeLook(targetID, s.clock.Now())
	if err != nil {
		if errCode := StatusFromError(err); errCode == http.StatusNotFound {
			_ = conn.sendEvent("error", errorBody{Status: errCode, Message: err.Error()})
			return false
		}
		s.log.Debug(ctx, "look frame skipped",
			logging.String("target_id", targetID),
			logging.String("error", err.Error()),
		)
		return true
	}
	return conn.sendEvent("look", lookToResponse(ls)) == nil
}

// handleStreamPlayback serves GET /v1/stream/playback?target=ID.
// Optional pass= selects which cached pass to replay (default the
// first), factor= scales virtual time, step_s= sets the frame spacing.
func (s *Server) handleStreamPlayback(w http.ResponseWriter, r *http.Request) {
	targetID, err := requiredTargetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := intParam(r, "pass", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	factor, err := floatParam(r, "factor", engine.DefaultPlaybackFactor)
	if err != nil {
		writeError(w, err)
		return
	}
	stepS, err := floatParam(r, "step_s", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	if factor <= 0 || stepS <= 0 {
		writeError(w, fmt.Errorf("%w: factor and step_s must be positive", ErrInvalidRequest))
		return
	}

	passes, err := s.state.Passes(targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	if index < 0 || index >= len(passes) {
		writeError(w, fmt.Errorf("%w: pass index %d out of range, %d cached", ErrInvalidRequest, index, len(passes)))
		return
	}
	pass := passes[index]

	release, ok := s.acquireStream(w, r)
	if !ok {
		return
	}
	defer release()

	conn := openSSE(w, r)
	if conn == nil {
		return
	}

	replay := engine.Playback{
		Pass:   pass,
		Factor: factor,
		Step:   time.Duration(stepS * float64(time.Second)),
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	err = replay.Run(ctx, func(la model.LookAngle) {
		if sendErr := conn.sendEvent("frame", la); sendErr != nil {
			cancel()
		}
	})
	if err != nil {
		// Cancelled by the client or a failed write; nothing to say.
		return
	}
	_ = conn.sendEvent("done", passToResponse(pass, core.PassRating(pass, s.cloudCover(ctx)), false))
}
