package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"chainpad/internal/errors"
	"chainpad/internal/logger"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow connections without origin header (e.g., CLI tools)
		if origin == "" {
			return true
		}

		allowedOrigins := []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
			"http://[::1]",
			"https://[::1]",
		}
		for _, allowed := range allowedOrigins {
			if strings.HasPrefix(origin, allowed) {
				return true
			}
		}

		logger.WithFields(logger.Fields{
			"origin": origin,
			"remote": r.RemoteAddr,
		}).Warn("WebSocket connection rejected - invalid origin")

		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleLogsWebSocket godoc
// @Summary Stream service logs
// @Description Stream live log lines from the running network over WebSocket
// @Tags services,websocket
// @Param services query string false "Comma-separated service names, all when omitted"
// @Success 101 {string} string "Switching Protocols"
// @Failure 409 {object} errors.HTTPErrorResponse
// @Router /api/logs/stream [get]
func (s *Server) handleLogsWebSocket(c echo.Context) error {
	var services []string
	if param := c.QueryParam("services"); param != "" {
		services = strings.Split(param, ",")
	}

	ctx := c.Request().Context()
	entries, err := s.network.StreamLogs(ctx, services...)
	if err != nil {
		return errors.HandleError(c, err)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return err
	}
	defer ws.Close()

	// Reader goroutine notices the client going away
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
				return nil
			}
			if err := ws.WriteJSON(entry); err != nil {
				return nil
			}
		case <-clientGone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// handleEventsWebSocket godoc
// @Summary Stream lifecycle events
// @Description Stream orchestrator lifecycle events over WebSocket
// @Tags network,websocket
// @Success 101 {string} string "Switching Protocols"
// @Failure 409 {object} errors.HTTPErrorResponse
// @Router /api/events [get]
func (s *Server) handleEventsWebSocket(c echo.Context) error {
	events, err := s.network.Events()
	if err != nil {
		return errors.HandleError(c, err)
	}
	defer s.network.Unsubscribe(events)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return err
	}
	defer ws.Close()

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request().Context()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				return nil
			}
		case <-clientGone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
