package handlers

import (
	"fmt"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicbase/medrec-backend/internal/api/response"
	"github.com/clinicbase/medrec-backend/internal/attachments"
	apperrors "github.com/clinicbase/medrec-backend/internal/errors"
	"github.com/clinicbase/medrec-backend/internal/logger"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/storage"
	ws "github.com/clinicbase/medrec-backend/internal/websocket"
)

// AttachmentHandler handles attachment-related HTTP requests
type AttachmentHandler struct {
	store  *attachments.Store
	secLog *logger.SecurityLogger
	hub    *ws.Hub
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(store *attachments.Store, secLog *logger.SecurityLogger, hub *ws.Hub) *AttachmentHandler {
	return &AttachmentHandler{
		store:  store,
		secLog: secLog,
		hub:    hub,
	}
}

func ownerKindParam(c echo.Context) (models.OwnerKind, uint, error) {
	kind := models.OwnerKind(c.Param("kind"))
	if !kind.Valid() {
		return "", 0, fmt.Errorf("unknown owner kind %q", c.Param("kind"))
	}
	ownerID, err := strconv.ParseUint(c.Param("owner_id"), 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid owner ID")
	}
	return kind, uint(ownerID), nil
}

// notify publishes a record event; patient-owned attachments go to the
// patient's subscribers, the rest to every connected client.
func (h *AttachmentHandler) notify(event string, attachment *models.Attachment) {
	if h.hub == nil {
		return
	}
	ev := ws.NewRecordEvent(event)
	ev.AttachmentID = attachment.ID
	ev.Filename = attachment.OriginalName
	if attachment.OwnerKind == models.OwnerPatient {
		h.hub.BroadcastPatientEvent(attachment.OwnerID, ev)
		return
	}
	h.hub.BroadcastGlobalEvent(ev)
}

// Upload handles POST /api/:kind/:owner_id/attachments
func (h *AttachmentHandler) Upload(c echo.Context) error {
	kind, ownerID, err := ownerKindParam(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "file is required")
	}

	if err := storage.ValidateFile(fileHeader.Filename, fileHeader.Size); err != nil {
		if h.secLog != nil {
			h.secLog.BlockedFileUpload(c.RealIP(), fileHeader.Filename, err.Error())
		}
		return response.BadRequest(c, err.Error())
	}

	src, err := fileHeader.Open()
	if err != nil {
		return response.InternalError(c, "failed to read uploaded file")
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	category := c.FormValue("category")
	description := c.FormValue("description")

	attachment, err := h.store.Save(c.Request().Context(), kind, ownerID, src, fileHeader.Filename, contentType, category, description)
	if err != nil {
		return response.Error(c, err)
	}

	h.notify(ws.EventAttachmentUploaded, attachment)

	return response.Created(c, attachment)
}

// List handles GET /api/:kind/:owner_id/attachments. With ?grouped=true the
// attachments come back keyed by category instead of as a flat list.
func (h *AttachmentHandler) List(c echo.Context) error {
	kind, ownerID, err := ownerKindParam(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if c.QueryParam("grouped") == "true" {
		grouped, err := h.store.ListByCategory(c.Request().Context(), kind, ownerID)
		if err != nil {
			return response.Error(c, err)
		}
		return response.Success(c, grouped)
	}

	list, err := h.store.ListByOwner(c.Request().Context(), kind, ownerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, list)
}

// OwnerSize handles GET /api/:kind/:owner_id/attachments/size
func (h *AttachmentHandler) OwnerSize(c echo.Context) error {
	kind, ownerID, err := ownerKindParam(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	size, err := h.store.AggregateSize(c.Request().Context(), kind, ownerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"owner_kind":       kind,
		"owner_id":         ownerID,
		"total_size_bytes": size,
	})
}

// TotalSize handles GET /api/attachments/size
func (h *AttachmentHandler) TotalSize(c echo.Context) error {
	size, err := h.store.AggregateSizeAll(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"total_size_bytes": size,
	})
}

// Get handles GET /api/attachments/:id
func (h *AttachmentHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	attachment, err := h.store.Get(c.Request().Context(), uint(id))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, attachment)
}

// Download handles GET /api/attachments/:id/download
func (h *AttachmentHandler) Download(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	file, attachment, err := h.store.Open(c.Request().Context(), uint(id))
	if err != nil {
		return response.Error(c, err)
	}
	defer file.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set("Content-Type", contentType)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, attachment.OriginalName))
	if attachment.SizeBytes > 0 {
		c.Response().Header().Set("Content-Length", strconv.FormatInt(attachment.SizeBytes, 10))
	}

	if _, err := io.Copy(c.Response().Writer, file); err != nil {
		return response.InternalError(c, "failed to send file")
	}

	return nil
}

// AttachmentMetadataRequest represents the request body for updating an
// attachment's category and description
type AttachmentMetadataRequest struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// UpdateMetadata handles PATCH /api/attachments/:id
func (h *AttachmentHandler) UpdateMetadata(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	var req AttachmentMetadataRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	attachment, err := h.store.UpdateMetadata(c.Request().Context(), uint(id), req.Category, req.Description)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, attachment)
}

// Delete handles DELETE /api/attachments/:id
func (h *AttachmentHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	attachment, err := h.store.Get(c.Request().Context(), uint(id))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return response.NotFound(c, "attachment not found")
		}
		return response.Error(c, err)
	}

	if _, err := h.store.Delete(c.Request().Context(), uint(id)); err != nil {
		return response.Error(c, err)
	}

	h.notify(ws.EventAttachmentDeleted, attachment)

	return response.NoContent(c)
}
