package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"photovault/internal/models"
)

// RequireRoles admits the current user only when their role is listed.
// Must run after Auth.
func RequireRoles(log zerolog.Logger, roles ...models.UserRole) gin.HandlerFunc {
	allowed := slices.Clone(roles)

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !slices.Contains(allowed, user.Role) {
			log.Warn().
				Str("user_id", user.ID).
				Str("role", string(user.Role)).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Str("request_id", RequestIDFrom(c)).
				Msg("role denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

// RequireAdmin guards the admin surface.
func RequireAdmin(log zerolog.Logger) gin.HandlerFunc {
	return RequireRoles(log, models.UserRoleAdmin)
}
