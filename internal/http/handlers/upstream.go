package handlers

import (
	"errors"
	"log/slog"

	"github.com/geocoder89/herapt/internal/ml"
	"github.com/gin-gonic/gin"
)

// MLService is satisfied by *ml.Client and *ml.Breaker.
type MLService = ml.Service

// respondUpstreamError maps ML failures; upstream bodies are logged, never echoed.
func respondUpstreamError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ml.ErrCircuitOpen):
		slog.Default().WarnContext(ctx.Request.Context(), "ml_circuit_open", "op", op)
		RespondUnavailable(ctx, "ML service temporarily unavailable")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "ml_call_failed", "op", op, "err", err)
		RespondBadGateway(ctx, "ML service error")
	}
}
