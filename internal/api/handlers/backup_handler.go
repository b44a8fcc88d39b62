package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicbase/medrec-backend/internal/api/response"
	"github.com/clinicbase/medrec-backend/internal/backup"
	"github.com/clinicbase/medrec-backend/internal/logger"
	ws "github.com/clinicbase/medrec-backend/internal/websocket"
)

// BackupHandler handles database backup HTTP requests
type BackupHandler struct {
	manager *backup.Manager
	secLog  *logger.SecurityLogger
	hub     *ws.Hub
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(manager *backup.Manager, secLog *logger.SecurityLogger, hub *ws.Hub) *BackupHandler {
	return &BackupHandler{
		manager: manager,
		secLog:  secLog,
		hub:     hub,
	}
}

func (h *BackupHandler) notify(event, filename string) {
	if h.hub == nil {
		return
	}
	ev := ws.NewRecordEvent(event)
	ev.Filename = filename
	h.hub.BroadcastGlobalEvent(ev)
}

// Create handles POST /api/backups
func (h *BackupHandler) Create(c echo.Context) error {
	result, err := h.manager.Create(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	if h.secLog != nil {
		h.secLog.BackupCreated(c.RealIP(), result.Filename, result.SizeBytes)
	}
	h.notify(ws.EventBackupCreated, result.Filename)

	return response.Created(c, result)
}

// List handles GET /api/backups
func (h *BackupHandler) List(c echo.Context) error {
	backups, err := h.manager.List(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, backups)
}

// Restore handles POST /api/backups/:filename/restore
func (h *BackupHandler) Restore(c echo.Context) error {
	filename := c.Param("filename")

	result, err := h.manager.Restore(c.Request().Context(), filename)
	if err != nil {
		return response.Error(c, err)
	}

	if h.secLog != nil {
		h.secLog.BackupRestored(c.RealIP(), filename)
	}
	h.notify(ws.EventBackupRestored, filename)

	return response.Success(c, result)
}

// Delete handles DELETE /api/backups/:filename
func (h *BackupHandler) Delete(c echo.Context) error {
	filename := c.Param("filename")

	removed, err := h.manager.Delete(c.Request().Context(), filename)
	if err != nil {
		return response.Error(c, err)
	}
	if !removed {
		return response.NotFound(c, "backup not found")
	}

	if h.secLog != nil {
		h.secLog.BackupDeleted(c.RealIP(), filename)
	}

	return response.NoContent(c)
}

// Stats handles GET /api/backups/stats
func (h *BackupHandler) Stats(c echo.Context) error {
	stats, err := h.manager.Stats(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, stats)
}
