package storage

import (
	"alcyxob/video-catalog/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// s3Storage implements ObjectStore on an S3-compatible backend.
type s3Storage struct {
	uploader      *manager.Uploader
	presignClient *s3.PresignClient // Special client for generating presigned URLs
	bucketName    string
	logger        logrus.FieldLogger
}

// NewS3Storage creates a new S3 storage service instance. optFns are applied
// to the client after the config-derived options.
func NewS3Storage(ctx context.Context, cfg config.S3Config, logger logrus.FieldLogger, optFns ...func(*s3.Options)) (ObjectStore, error) {
	if cfg.BucketName == "" || cfg.Region == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: s3 needs bucket, region and credentials", ErrNotConfigured)
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO and most other S3-compatible services need path-style addressing.
		o.UsePathStyle = cfg.UsePathStyle
		for _, fn := range optFns {
			fn(o)
		}
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		// S3 rejects multipart parts below 5 MiB, so that is the floor here.
		u.PartSize = max(partSize, manager.MinUploadPartSize)
		u.Concurrency = 20
		u.LeavePartsOnError = false
	})

	logger.WithFields(logrus.Fields{"endpoint": cfg.Endpoint, "bucket": cfg.BucketName}).Info("S3 object store initialized")

	return &s3Storage{
		uploader:      uploader,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		logger:        logger,
	}, nil
}

// Put streams r through the multipart uploader. A failed multipart upload is
// aborted so no partial object becomes visible.
func (s *s3Storage) Put(ctx context.Context, r io.Reader, contentType, suggestedName string) (Object, error) {
	key := NewObjectKey(suggestedName)
	body := &countingReader{ctx: ctx, r: r}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{"key": key, "bytes": body.n}).WithError(err).Error("s3 put failed")
		return Object{}, classifyS3(err)
	}

	return Object{Key: key, Size: body.n, ContentType: contentType}, nil
}

// IssueReadCapability creates a presigned GET URL for the object.
func (s *s3Storage) IssueReadCapability(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(normalizeTTL(ttl)))
	if err != nil {
		s.logger.WithField("key", key).WithError(err).Error("failed to presign s3 GET")
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func classifyS3(err error) error {
	var respErr *awshttp.ResponseError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case errors.As(err, &respErr) && (respErr.HTTPStatusCode() >= 500 || respErr.HTTPStatusCode() == http.StatusTooManyRequests):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
}
