package middlewares

import "github.com/gin-gonic/gin"

// abortJSON writes the same error envelope as handlers.RespondError.
func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}
