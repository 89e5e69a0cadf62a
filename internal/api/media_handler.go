package api

import (
	"alcyxob/video-catalog/internal/storage"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MediaHandler serves objects of the local store to holders of a valid read
// capability. Cloud backends serve their own signed URLs.
type MediaHandler struct {
	store  *storage.LocalStorage
	logger logrus.FieldLogger
}

func NewMediaHandler(store *storage.LocalStorage, logger logrus.FieldLogger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

// Serve handles GET /media/:key?token=
func (h *MediaHandler) Serve(c *gin.Context) {
	key := c.Param("key")
	if err := h.store.VerifyReadCapability(key, c.Query("token")); err != nil {
		if errors.Is(err, storage.ErrCapabilityExpired) {
			abortWithError(c, http.StatusForbidden, "Link has expired")
		} else {
			abortWithError(c, http.StatusForbidden, "Invalid link")
		}
		return
	}

	f, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			abortWithError(c, http.StatusNotFound, "Object not found")
			return
		}
		h.logger.WithField("key", key).WithError(err).Error("open media object failed")
		abortWithError(c, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		abortWithError(c, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}
	// ServeContent handles Range requests so players can seek.
	http.ServeContent(c.Writer, c.Request, key, info.ModTime(), f)
}
