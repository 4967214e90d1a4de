package server

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/events"
)

// Events upgrades the connection and streams bus events as JSON text
// frames. The optional types query parameter filters by event type.
func (s *Server) Events(c echo.Context) error {
	var types []core.EventType
	if v := c.QueryParam("types"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, core.EventType(t))
			}
		}
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.opts.Logger.Warn("server.events.upgrade_failed", "error", err.Error())
		return err
	}

	sub := s.bus.Subscribe(s.opts.EventBuffer, types...)
	s.opts.Logger.Debug("server.events.connected", "subscription", sub.ID)

	go s.writePump(ws, sub)
	go s.readPump(ws, sub)

	return nil
}

// readPump discards client frames and detects disconnects.
func (s *Server) readPump(ws *websocket.Conn, sub *events.Subscription) {
	defer func() {
		sub.Close()
		ws.Close()
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.opts.Logger.Debug("server.events.read_error", "error", err.Error())
			}
			return
		}
	}
}

// writePump forwards subscription events to the connection.
func (s *Server) writePump(ws *websocket.Conn, sub *events.Subscription) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				s.opts.Logger.Debug("server.events.write_failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
