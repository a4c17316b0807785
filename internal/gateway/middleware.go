package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	contextKeyClaims    = "session_claims"
	contextKeyRequestID = "request_id"
)

// AuthMiddleware validates the bearer session token and stores its
// claims on the request context.
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"code":    "INVALID_CREDENTIAL",
				"message": "missing bearer token",
			})
			return
		}

		claims, err := h.service.ParseSession(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"code":    "INVALID_CREDENTIAL",
				"message": "invalid session token",
			})
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// SessionClaims returns the authenticated caller's claims, if present.
func SessionClaimsFrom(c *gin.Context) (*SessionClaims, bool) {
	value, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*SessionClaims)
	return claims, ok
}

// RequestLogger tags each request with an id and logs its outcome.
func (h *Handlers) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set(contextKeyRequestID, requestID)
		c.Header("X-Request-Id", requestID)

		start := time.Now()
		c.Next()

		h.log.WithRequestID(requestID).WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}).Info("HTTP request completed")
	}
}
