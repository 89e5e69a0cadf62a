package storage

import (
	"alcyxob/video-catalog/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type gcsStorage struct {
	client         *gcs.Client
	bucket         string
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
	logger         logrus.FieldLogger
}

// GCSOption customizes the GCS store; mostly useful for tests.
type GCSOption func(*gcsStorage)

// WithGCSClient replaces the client built from credentials.
func WithGCSClient(client *gcs.Client) GCSOption {
	return func(s *gcsStorage) {
		if client != nil {
			s.client = client
		}
	}
}

// WithSigningKey injects the service account used to sign read URLs.
func WithSigningKey(accessID string, privateKey []byte) GCSOption {
	return func(s *gcsStorage) {
		if accessID != "" {
			s.googleAccessID = accessID
		}
		if len(privateKey) > 0 {
			s.privateKey = append([]byte(nil), privateKey...)
		}
	}
}

// NewGCSStorage creates an ObjectStore backed by a Google Cloud Storage bucket.
func NewGCSStorage(ctx context.Context, cfg config.GCSConfig, logger logrus.FieldLogger, opts ...GCSOption) (ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", ErrNotConfigured)
	}

	s := &gcsStorage{
		bucket:         cfg.Bucket,
		googleAccessID: cfg.AccessID,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.privateKey) == 0 && cfg.PrivateKeyFile != "" {
		key, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read gcs signing key: %w", err)
		}
		s.privateKey = key
	}
	if s.googleAccessID == "" || len(s.privateKey) == 0 {
		return nil, fmt.Errorf("%w: gcs access id and private key are required to sign read URLs", ErrNotConfigured)
	}

	if s.client == nil {
		var clientOpts []option.ClientOption
		if cfg.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		client, err := gcs.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: create gcs client: %w", ErrStorageUnavailable, err)
		}
		s.client = client
	}

	logger.WithField("bucket", cfg.Bucket).Info("GCS object store initialized")
	return s, nil
}

// Put writes with a precondition that the object must not exist yet. The
// writer only commits on a successful Close, so cancelling ctx on a copy
// error leaves nothing behind.
func (s *gcsStorage) Put(ctx context.Context, r io.Reader, contentType, suggestedName string) (Object, error) {
	key := NewObjectKey(suggestedName)

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	w.ContentType = contentType
	w.ChunkSize = partSize

	body := &countingReader{ctx: ctx, r: r}
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		s.logger.WithFields(logrus.Fields{"key": key, "bytes": body.n}).WithError(err).Error("gcs put failed")
		return Object{}, classifyGCS(err)
	}
	if err := w.Close(); err != nil {
		s.logger.WithFields(logrus.Fields{"key": key, "bytes": body.n}).WithError(err).Error("gcs commit failed")
		return Object{}, classifyGCS(err)
	}

	return Object{Key: key, Size: body.n, ContentType: contentType}, nil
}

// IssueReadCapability returns a V4 signed GET URL. Signing is local and
// needs no network round trip.
func (s *gcsStorage) IssueReadCapability(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := gcs.SignedURL(s.bucket, key, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        s.now().Add(normalizeTTL(ttl)),
		GoogleAccessID: s.googleAccessID,
		PrivateKey:     s.privateKey,
	})
	if err != nil {
		s.logger.WithField("key", key).WithError(err).Error("generate gcs signed url failed")
		return "", fmt.Errorf("signed url: %w", err)
	}
	return url, nil
}

func classifyGCS(err error) error {
	var apiErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case errors.As(err, &apiErr) && (apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
}
