package middlewares

import (
	"net/http"

	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(required user.Role, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			abortJSON(c, http.StatusUnauthorized, CodeMissingCredential, msgMissingCredential)
			return
		}
		if role != required {
			abortJSON(c, http.StatusForbidden, "forbidden", message)
			return
		}
		c.Next()
	}
}
