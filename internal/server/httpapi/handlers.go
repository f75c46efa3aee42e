// Package httpapi exposes the sync service over HTTP and the websocket push
// channel. Accepted writes fan out to the owner's other live devices.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/logging"
	"github.com/scribelab/scribe/internal/server/models"
	"github.com/scribelab/scribe/internal/server/registry"
	"github.com/scribelab/scribe/internal/server/services"
)

// SyncHandler serves the sync endpoints.
type SyncHandler struct {
	service  *services.SyncService
	registry *registry.Registry
	logger   logging.Logger
}

func NewSyncHandler(service *services.SyncService, reg *registry.Registry, logger logging.Logger) *SyncHandler {
	return &SyncHandler{
		service:  service,
		registry: reg,
		logger:   logger.With("module", "httpapi"),
	}
}

// documentsPage and foldersPage mirror the client's delta-fetch shape.
type documentsPage struct {
	Documents []*models.Document `json:"documents"`
	SyncedAt  time.Time          `json:"synced_at"`
}

type foldersPage struct {
	Folders  []*models.Folder `json:"folders"`
	SyncedAt time.Time        `json:"synced_at"`
}

// conflictBody is the 409 response: the current server entity plus its
// version and timestamp.
type conflictBody struct {
	Entity      any       `json:"entity"`
	SyncVersion int64     `json:"sync_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (h *SyncHandler) ListDocuments(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), UserIDFromContext(c), since)
	if err != nil {
		h.fail(c, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	c.JSON(http.StatusOK, documentsPage{Documents: docs, SyncedAt: time.Now().UTC()})
}

func (h *SyncHandler) UpsertDocument(c *gin.Context) {
	var doc models.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	doc.ID = c.Param("id")

	stored, err := h.service.UpsertDocument(c.Request.Context(), UserIDFromContext(c), &doc)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.registry.Broadcast(c.Request.Context(), stored.OwnerID, common.Event{
		Type:        common.EventDocumentUpdated,
		DeviceID:    DeviceIDFromContext(c),
		EntityID:    stored.ID,
		SyncVersion: stored.SyncVersion,
		UpdatedAt:   stored.UpdatedAt,
	})
	c.JSON(http.StatusOK, stored)
}

func (h *SyncHandler) DeleteDocument(c *gin.Context) {
	gone, err := h.service.DeleteDocument(c.Request.Context(), UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.registry.Broadcast(c.Request.Context(), gone.OwnerID, common.Event{
		Type:        common.EventDocumentDeleted,
		DeviceID:    DeviceIDFromContext(c),
		EntityID:    gone.ID,
		SyncVersion: gone.SyncVersion,
		UpdatedAt:   gone.UpdatedAt,
	})
	c.Status(http.StatusNoContent)
}

func (h *SyncHandler) ListFolders(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}

	fols, err := h.service.ListFolders(c.Request.Context(), UserIDFromContext(c), since)
	if err != nil {
		h.fail(c, err)
		return
	}
	if fols == nil {
		fols = []*models.Folder{}
	}
	c.JSON(http.StatusOK, foldersPage{Folders: fols, SyncedAt: time.Now().UTC()})
}

func (h *SyncHandler) UpsertFolder(c *gin.Context) {
	var folder models.Folder
	if err := c.ShouldBindJSON(&folder); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	folder.ID = c.Param("id")

	stored, err := h.service.UpsertFolder(c.Request.Context(), UserIDFromContext(c), &folder)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.registry.Broadcast(c.Request.Context(), stored.OwnerID, common.Event{
		Type:        common.EventFolderUpdated,
		DeviceID:    DeviceIDFromContext(c),
		EntityID:    stored.ID,
		SyncVersion: stored.SyncVersion,
		UpdatedAt:   stored.UpdatedAt,
	})
	c.JSON(http.StatusOK, stored)
}

func (h *SyncHandler) DeleteFolder(c *gin.Context) {
	gone, err := h.service.DeleteFolder(c.Request.Context(), UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.registry.Broadcast(c.Request.Context(), gone.OwnerID, common.Event{
		Type:        common.EventFolderDeleted,
		DeviceID:    DeviceIDFromContext(c),
		EntityID:    gone.ID,
		SyncVersion: gone.SyncVersion,
		UpdatedAt:   gone.UpdatedAt,
	})
	c.Status(http.StatusNoContent)
}

// parseSince reads the optional since query param (RFC3339Nano). The bool is
// false when the request was already answered with a 400.
func parseSince(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
		return nil, false
	}
	return &ts, true
}

// fail maps service errors onto HTTP statuses.
func (h *SyncHandler) fail(c *gin.Context, err error) {
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, conflictBody{
			Entity:      conflict.Entity,
			SyncVersion: conflict.SyncVersion,
			UpdatedAt:   conflict.UpdatedAt,
		})
	case errors.Is(err, common.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "version conflict"})
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
