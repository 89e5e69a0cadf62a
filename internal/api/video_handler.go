package api

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/service"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	uploadFileField = "video"
	// maxFieldBytes caps each metadata field read ahead of the file part.
	maxFieldBytes = 4 << 10
	// multipartOverhead is the request room allowed on top of the file limit
	// for boundaries, part headers and metadata fields.
	multipartOverhead = 1 << 20
)

type VideoHandler struct {
	catalog        service.CatalogService
	engagement     service.EngagementService
	ingest         service.IngestService
	maxUploadBytes int64
	logger         logrus.FieldLogger
}

func NewVideoHandler(catalog service.CatalogService, engagement service.EngagementService, ingest service.IngestService, maxUploadBytes int64, logger logrus.FieldLogger) *VideoHandler {
	return &VideoHandler{
		catalog:        catalog,
		engagement:     engagement,
		ingest:         ingest,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type VideoListResponse struct {
	Items []domain.Video `json:"items"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type RatingRequest struct {
	Rating int `json:"rating"`
}

// ListVideos handles GET /api/videos?q=
func (h *VideoHandler) ListVideos(c *gin.Context) {
	videos, err := h.catalog.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, VideoListResponse{Items: videos})
}

// GetVideo handles GET /api/videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	video, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// AddComment handles POST /api/videos/:id/comment
func (h *VideoHandler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	video, err := h.engagement.AddComment(c.Request.Context(), c.Param("id"), service.CommentInput{
		UserID:    c.GetString(ContextUserIDKey),
		UserEmail: c.GetString(ContextUserEmailKey),
		Text:      req.Text,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// AddRating handles POST /api/videos/:id/rating
func (h *VideoHandler) AddRating(c *gin.Context) {
	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	video, err := h.engagement.AddRating(c.Request.Context(), c.Param("id"), service.RatingInput{
		UserID: c.GetString(ContextUserIDKey),
		Score:  req.Rating,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// Upload handles POST /api/videos/upload. The body is streamed part by part
// straight into the object store; metadata fields must come before the
// "video" file part and anything after it is ignored.
func (h *VideoHandler) Upload(c *gin.Context) {
	requestLimit := h.maxUploadBytes + multipartOverhead
	if c.Request.ContentLength > requestLimit {
		abortWithError(c, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, requestLimit)

	reader, err := c.Request.MultipartReader()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Expected a multipart/form-data upload")
		return
	}

	fields := map[string]string{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			abortWithError(c, http.StatusBadRequest, "No video file uploaded")
			return
		}
		if err != nil {
			respondUploadReadError(c, err)
			return
		}

		if part.FormName() == uploadFileField && part.FileName() != "" {
			h.ingestPart(c, part, fields)
			_ = part.Close()
			return
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		_ = part.Close()
		if err != nil {
			respondUploadReadError(c, err)
			return
		}
		fields[part.FormName()] = string(value)
	}
}

func (h *VideoHandler) ingestPart(c *gin.Context, part *multipart.Part, fields map[string]string) {
	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	video, err := h.ingest.Ingest(c.Request.Context(), service.IngestInput{
		Body:        &fileLimitReader{r: part, n: h.maxUploadBytes, limit: h.maxUploadBytes},
		ContentType: contentType,
		FileName:    part.FileName(),
		Metadata: service.VideoMetadata{
			Title:     fields["title"],
			Publisher: fields["publisher"],
			Producer:  fields["producer"],
			Genre:     fields["genre"],
			AgeRating: domain.AgeRating(strings.TrimSpace(fields["ageRating"])),
		},
		UploaderID:    c.GetString(ContextUserIDKey),
		UploaderEmail: c.GetString(ContextUserEmailKey),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// fileLimitReader caps the file part itself at limit bytes and then fails
// with *http.MaxBytesError, which maps to a 413.
type fileLimitReader struct {
	r     io.Reader
	n     int64 // bytes left
	limit int64
	err   error
}

func (l *fileLimitReader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	if int64(n) <= l.n {
		l.n -= int64(n)
		return n, err
	}
	n = int(l.n)
	l.n = 0
	l.err = &http.MaxBytesError{Limit: l.limit}
	return n, l.err
}

func respondUploadReadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortWithError(c, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
		return
	}
	abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Malformed upload: %v", err))
}
