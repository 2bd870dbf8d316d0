package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the body of every non-2xx response. It carries nothing
// request-unique, the request id travels in the X-Request-Id header.
type APIError struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func RespondError(ctx *gin.Context, status int, code, message string, fields []FieldError) {
	ctx.AbortWithStatusJSON(status, APIError{
		Success: false,
		Code:    code,
		Message: message,
		Errors:  fields,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, fields []FieldError) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, fields)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusNotFound, code, message, nil)
}

func RespondBadGateway(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadGateway, "upstream_error", message, nil)
}

func RespondUnavailable(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusServiceUnavailable, "upstream_unavailable", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}
