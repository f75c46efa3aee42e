package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter assembles the public HTTP surface.
func NewRouter(h *SyncHandler, secretKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/sync")
	api.Use(Auth(secretKey))
	{
		api.GET("/documents", h.ListDocuments)
		api.PUT("/documents/:id", h.UpsertDocument)
		api.DELETE("/documents/:id", h.DeleteDocument)
		api.GET("/folders", h.ListFolders)
		api.PUT("/folders/:id", h.UpsertFolder)
		api.DELETE("/folders/:id", h.DeleteFolder)
		api.GET("/ws", h.HandleWS)
	}
	return r
}
