package handlers

import (
	"errors"
	"net/http"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// errorStatus maps service sentinels to an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrDefinitionNotFound), errors.Is(err, services.ErrRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrQuotaExceeded):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrRunNotAwaitingConfirmation), errors.Is(err, services.ErrRunDispatching):
		return http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrDepthExceeded), errors.Is(err, services.ErrDraftDefinition):
		return http.StatusUnprocessableEntity, "unresolvable"
	case errors.Is(err, services.ErrPriceUnavailable):
		return http.StatusBadGateway, "price_unavailable"
	case errors.Is(err, services.ErrInvalidCapital), errors.Is(err, services.ErrInvalidVariant),
		errors.Is(err, services.ErrInvalidComponent), errors.Is(err, services.ErrTradeNotInRun),
		errors.Is(err, services.ErrBrokerNotConfigured):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError renders err as the JSON error body. Validation failures carry
// their kind and, for cycles, the offending path.
func writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusConflict, models.ValidationErrorResponse{
			Error:  "validation_error",
			Kind:   string(verr.Kind),
			Detail: verr.Detail,
			Path:   verr.Path,
		})
		return
	}

	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}
