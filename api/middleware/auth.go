package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mediaresolve/models"
)

// Auth returns token authentication middleware.
//
// Supports two header styles:
//
//	Authorization: Bearer <key>
//	X-API-Key: <key>
//
// If apiKeys is empty the server is considered misconfigured and every
// request is rejected with 500, rather than silently left open.
func Auth(apiKeys []string) gin.HandlerFunc {
	keySet := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keySet[k] = struct{}{}
		}
	}

	if len(keySet) == 0 {
		return func(c *gin.Context) {
			abort(c, http.StatusInternalServerError, models.ErrCodeNotConfigured,
				"Server is not configured (missing AUTH_TOKEN)")
		}
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"Unauthorized: provide Authorization: Bearer <token> or X-API-Key")
			return
		}

		if _, valid := keySet[key]; !valid {
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Unauthorized")
			return
		}

		c.Set("api_key", key)
		c.Next()
	}
}

// extractAPIKey tries Authorization: Bearer first, then X-API-Key.
func extractAPIKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.GetHeader("X-API-Key")
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: code, Message: message},
	})
}
