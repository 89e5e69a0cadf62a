package service

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/logging"
	"alcyxob/video-catalog/internal/metrics"
	"alcyxob/video-catalog/internal/repository"
	"alcyxob/video-catalog/internal/storage"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultGenre = "General"

// VideoMetadata is the descriptive part of an upload.
type VideoMetadata struct {
	Title     string
	Publisher string
	Producer  string
	Genre     string
	AgeRating domain.AgeRating
}

type IngestInput struct {
	Body          io.Reader
	ContentType   string
	FileName      string
	Metadata      VideoMetadata
	UploaderID    string
	UploaderEmail string
}

type IngestOptions struct {
	CapabilityTTL time.Duration
	// PutTimeout bounds the object write; zero means only the caller's deadline applies.
	PutTimeout time.Duration
}

// IngestService turns an uploaded stream into a stored object plus a new
// catalog entry.
type IngestService interface {
	Ingest(ctx context.Context, input IngestInput) (*domain.Video, error)
}

type ingestService struct {
	videoRepo repository.VideoRepository
	store     storage.ObjectStore
	opts      IngestOptions
	metrics   *metrics.Collector
	logger    logrus.FieldLogger
}

func NewIngestService(videoRepo repository.VideoRepository, store storage.ObjectStore, opts IngestOptions, collector *metrics.Collector, logger logrus.FieldLogger) IngestService {
	if opts.CapabilityTTL <= 0 {
		opts.CapabilityTTL = storage.DefaultReadCapabilityTTL
	}
	return &ingestService{
		videoRepo: videoRepo,
		store:     store,
		opts:      opts,
		metrics:   collector,
		logger:    logger,
	}
}

// Ingest writes the stream, issues a read capability for it and creates the
// video document. A failed create leaves the object orphaned; that is logged
// and not rolled back.
func (s *ingestService) Ingest(ctx context.Context, input IngestInput) (*domain.Video, error) {
	started := time.Now()
	meta, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"uploader_id": input.UploaderID, "file": input.FileName})

	putCtx := ctx
	if s.opts.PutTimeout > 0 {
		var cancel context.CancelFunc
		putCtx, cancel = context.WithTimeout(ctx, s.opts.PutTimeout)
		defer cancel()
	}

	obj, err := s.store.Put(putCtx, input.Body, input.ContentType, input.FileName)
	if err != nil {
		s.metrics.IngestFailed()
		log.WithError(err).Error("object put failed")
		return nil, fmt.Errorf("store upload: %w", err)
	}
	log = log.WithField("key", obj.Key)

	locator, err := s.store.IssueReadCapability(ctx, obj.Key, s.opts.CapabilityTTL)
	if err != nil {
		s.orphaned(log, err, "read capability could not be issued")
		return nil, fmt.Errorf("issue read capability: %w", err)
	}

	video := &domain.Video{
		ID:           "video_" + uuid.NewString(),
		Title:        meta.Title,
		Publisher:    meta.Publisher,
		Producer:     meta.Producer,
		Genre:        meta.Genre,
		AgeRating:    meta.AgeRating,
		MediaLocator: locator,
		ObjectKey:    obj.Key,
		ContentType:  obj.ContentType,
		SizeBytes:    obj.Size,
		UploaderID:   input.UploaderID,
		CreatedAt:    time.Now().UTC(),
		Comments:     []domain.Comment{},
		Ratings:      map[string]domain.Rating{},
		Version:      0,
	}
	if err := s.videoRepo.Create(ctx, video); err != nil {
		s.orphaned(log, err, "video document could not be created")
		return nil, fmt.Errorf("create video: %w", err)
	}

	s.metrics.IngestSucceeded(obj.Size, time.Since(started).Seconds())
	log.WithFields(logrus.Fields{"video_id": video.ID, "bytes": obj.Size}).Info("video ingested")
	return video, nil
}

func (s *ingestService) orphaned(log logrus.FieldLogger, err error, reason string) {
	s.metrics.IngestFailed()
	s.metrics.OrphanedObject()
	logging.LogError(log, "orphaned object", err, logrus.Fields{"reason": reason})
}

// normalize applies upload defaults and rejects bad metadata before any byte
// is streamed.
func (s *ingestService) normalize(input IngestInput) (VideoMetadata, error) {
	if input.Body == nil {
		return VideoMetadata{}, fmt.Errorf("%w: no file uploaded", ErrValidation)
	}
	if input.UploaderID == "" {
		return VideoMetadata{}, fmt.Errorf("%w: uploader id is required", ErrValidation)
	}

	meta := input.Metadata
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Publisher = strings.TrimSpace(meta.Publisher)
	meta.Producer = strings.TrimSpace(meta.Producer)
	meta.Genre = strings.TrimSpace(meta.Genre)

	if meta.Title == "" {
		meta.Title = input.FileName
	}
	if meta.Publisher == "" {
		meta.Publisher = input.UploaderEmail
	}
	if meta.Genre == "" {
		meta.Genre = DefaultGenre
	}
	if meta.AgeRating == "" {
		meta.AgeRating = domain.AgeRatingPG
	}
	if !meta.AgeRating.Valid() {
		return VideoMetadata{}, fmt.Errorf("%w: unknown age rating %q", ErrValidation, meta.AgeRating)
	}
	return meta, nil
}
