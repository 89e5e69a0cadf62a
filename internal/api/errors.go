package api

import (
	"alcyxob/video-catalog/internal/repository"
	"alcyxob/video-catalog/internal/service"
	"alcyxob/video-catalog/internal/storage"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service, repository and storage errors onto HTTP status
// codes. Anything unrecognized is logged and reported as a 500.
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserAlreadyExists):
		abortWithError(c, http.StatusBadRequest, "User already exists")
	case errors.Is(err, service.ErrAuthenticationFailed):
		abortWithError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrVideoNotFound), errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Video not found")
	case errors.Is(err, repository.ErrAlreadyExists):
		abortWithError(c, http.StatusConflict, "Resource already exists")
	case errors.As(err, &tooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, storage.ErrStorageUnavailable):
		logger.WithError(err).Warn("transient failure")
		c.Header("Retry-After", "1")
		abortWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	default:
		logger.WithError(err).Error("request failed")
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
