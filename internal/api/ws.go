package api

// WebSocket variant of the live look feed, for clients that want a
// bidirectional socket instead of SSE. The server only writes; inbound
// messages are drained to surface close frames promptly.

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/skywatch/internal/logging"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Viewer frontends are served from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleWSLook serves GET /v1/ws/look?target=ID over a WebSocket. Each
// frame is the same JSON document the SSE feed sends.
func (s *Server) handleWSLook(w http.ResponseWriter, r *http.Request) {
	targetID, err := requiredTargetParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.state.Catalog().Get(targetID); err != nil {
		writeError(w, err)
		return
	}

	release, ok := s.acquireStream(w, r)
	if !ok {
		return
	}
	defer release()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug(r.Context(), "websocket upgrade failed", logging.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	log := s.log.With(
		logging.String("target_id", targetID),
		logging.String("remote_ip", clientIP(r)),
	)
	log.Info(ctx, "websocket look feed opened")

	// Drain reads so close frames and half-closed sockets are noticed
	// even though the feed is write-only.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()
	keepalive := time.NewTicker(s.streamKeepalive)
	defer keepalive.Stop()

	writeFrame := func() bool {
		ls, err := s.state.ComputeLook(targetID, s.clock.Now())
		if err != nil {
			if StatusFromError(err) == http.StatusNotFound {
				return false
			}
			return true // transient, skip the frame
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(lookToResponse(ls)) == nil
	}

	if !writeFrame() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			log.Info(ctx, "websocket look feed closed by client")
			return
		case <-ticker.C:
			if !writeFrame() {
				return
			}
		case <-keepalive.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
