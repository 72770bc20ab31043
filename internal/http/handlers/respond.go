package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/bugzapp/internal/apperr"
	"github.com/gin-gonic/gin"
)

// default deadline for a single store round trip
const requestTimeout = 3 * time.Second

func requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), requestTimeout)
}

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message)
}

// RespondErr maps a service error onto its HTTP status. Internal errors are
// logged with the request context so trace and request ids travel with them.
func RespondErr(ctx *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if kind == apperr.KindInternal {
		slog.ErrorContext(ctx.Request.Context(), "request failed",
			"route", ctx.FullPath(),
			"err", err,
		)
	}

	RespondError(ctx, status, err.Error())
}
