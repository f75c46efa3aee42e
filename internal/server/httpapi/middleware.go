package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/scribelab/scribe/internal/server/auth"
)

const (
	userIDKey   = "userID"
	deviceIDKey = "deviceID"
)

// UserIDFromContext returns the authenticated user id set by Auth.
func UserIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// DeviceIDFromContext returns the calling device id set by Auth.
func DeviceIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(deviceIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Auth validates the bearer JWT and requires an X-Device-Id header. Both ids
// land in the request context for the handlers.
func Auth(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		userID, err := auth.GetUserIDFromToken(strings.TrimSpace(h[7:]), secretKey)
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		deviceID := strings.TrimSpace(c.GetHeader("X-Device-Id"))
		if deviceID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-device-id required"})
			return
		}

		c.Set(userIDKey, userID)
		c.Set(deviceIDKey, deviceID)
		c.Next()
	}
}
