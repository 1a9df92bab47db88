package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spendly/spendly/internal/http/middlewares"
)

// Every error response keeps the same envelope the SPA expects:
// {"success": false, "message": "...", "errors": [...]}.

type ErrorResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	RequestID string       `json:"requestId,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, message string, fields []FieldError) {
	ctx.JSON(status, ErrorResponse{
		Success:   false,
		Message:   message,
		RequestID: requestIDFrom(ctx),
		Errors:    fields,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, fields []FieldError) {
	RespondError(ctx, http.StatusBadRequest, message, fields)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message, nil)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message, nil)
}
