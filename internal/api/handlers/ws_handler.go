package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	ws "github.com/clinicbase/medrec-backend/internal/websocket"
)

// WSHandler upgrades HTTP connections to WebSocket clients on the hub
type WSHandler struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{hub: hub, logger: logger}
}

// Serve handles GET /ws
func (h *WSHandler) Serve(c echo.Context) error {
	upgrader := ws.NewSecureUpgrader(h.logger)
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	client := ws.NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	return nil
}
