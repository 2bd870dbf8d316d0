package middlewares

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a generic 500 and logs the stack.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				reqID, _ := c.Get(CtxRequestID)
				log.ErrorContext(c.Request.Context(), "panic_recovered",
					"panic", rec,
					"route", c.FullPath(),
					"request_id", reqID,
					"stack", string(debug.Stack()),
				)
				abortJSON(c, http.StatusInternalServerError, "internal_error", "Server error")
			}
		}()
		c.Next()
	}
}
