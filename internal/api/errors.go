package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/service"
)

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// invalidRequest reports a body or query that failed binding
func invalidRequest(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
}

// respondError maps service and ledger errors onto HTTP responses
func respondError(c *gin.Context, err error) {
	var (
		validation *ledger.ValidationError
		exceeded   *ledger.QuantityExceededError
		duplicate  *ledger.DuplicateColorError
		upstream   *service.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		abortWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", validation.Error())
	case errors.As(err, &exceeded):
		abortWithError(c, http.StatusUnprocessableEntity, "QUANTITY_EXCEEDED", exceeded.Error())
	case errors.As(err, &duplicate):
		abortWithError(c, http.StatusConflict, "DUPLICATE_COLOR", duplicate.Error())
	case errors.Is(err, ledger.ErrItemNotFound):
		abortWithError(c, http.StatusNotFound, "ITEM_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrDraftNotFound), errors.Is(err, service.ErrDraftClosed):
		abortWithError(c, http.StatusNotFound, "DRAFT_NOT_FOUND", "Draft not found")
	case errors.Is(err, service.ErrSourceNotFound):
		abortWithError(c, http.StatusNotFound, "SOURCE_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrDraftForbidden):
		abortWithError(c, http.StatusForbidden, "FORBIDDEN", "You do not have access to this draft")
	case errors.Is(err, service.ErrEmptyDraft), errors.Is(err, service.ErrUnresolvedColor):
		abortWithError(c, http.StatusUnprocessableEntity, "INCOMPLETE_DRAFT", err.Error())
	case errors.Is(err, service.ErrInvalidDraftRequest):
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.As(err, &upstream):
		abortWithError(c, http.StatusBadGateway, "UPSTREAM_ERROR", upstream.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		abortWithError(c, http.StatusGatewayTimeout, "TIMEOUT", "Draft is still loading, try again")
	default:
		abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
