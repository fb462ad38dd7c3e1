package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/sift/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleScanProgressWS streams the progress events of one scan. Events are
// advisory: a subscriber that connects late misses earlier events and should
// read GET /scans/{scanID} for the authoritative record. The stream ends after
// the scan_complete event.
//
// @Summary Stream scan progress
// @Tags scans
// @Param scanID path string true "scan id"
// @Param token query string false "bearer token for clients that cannot set headers"
// @Router /ws/scans/{scanID} [get]
func (s *Server) handleScanProgressWS(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	caller, err := s.identify(r.Context(), r, true)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if !caller.Authenticated() {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	// Subscribe before the upgrade so no event emitted during the handshake
	// is lost.
	events, unsubscribe := s.hub.Subscribe(scanID)
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	log := s.logger.With(logging.Field{Key: "scan_id", Value: scanID})
	log.Info("progress subscriber connected", logging.Field{Key: "user_id", Value: caller.UserID})

	// The read pump only services control frames and notices disconnects.
	gone := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("progress subscriber write failed", logging.Err(err))
				return
			}
			if ev.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan complete"),
					time.Now().Add(wsWriteWait))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			log.Debug("progress subscriber disconnected")
			return
		}
	}
}
