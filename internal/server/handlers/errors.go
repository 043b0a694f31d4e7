package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
	"github.com/mamadbah2/milkwatch/internal/service/ingest"
	"github.com/mamadbah2/milkwatch/internal/service/milkyield"
	"github.com/mamadbah2/milkwatch/internal/service/reconciliation"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidPage),
		errors.Is(err, ingest.ErrInvalidEvent),
		errors.Is(err, ingest.ErrLactationPreassigned),
		errors.Is(err, models.ErrUnknownAttribute),
		errors.Is(err, models.ErrAttributeKind),
		errors.Is(err, models.ErrAttributeValue):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrLactationNotFound), milkyield.IsRecordError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reconciliation.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server errors are logged and
// their detail hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	logger.Warn(msg, zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}
